//go:build !dev

package runtime

import (
	"fmt"

	"github.com/vcrobe/cove/console"
)

// protect runs fn and turns a panic into an error, so a broken hook or
// handler cannot take down the loop goroutine.
func protect(inst *Instance, stage string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			console.L().Error().Str("tag", inst.Tag).Str("id", inst.ID).Str("stage", stage).
				Interface("panic", rec).Msg("recovered panic")
			err = fmt.Errorf("%s panic in <%s>: %v", stage, inst.Tag, rec)
		}
	}()
	return fn()
}
