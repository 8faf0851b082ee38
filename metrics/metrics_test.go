package metrics

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcrobe/cove/loader"
	"github.com/vcrobe/cove/vdom"
)

func TestRecordBuild_Labels(t *testing.T) {
	m := New()
	m.RecordBuild("x-a", nil)
	m.RecordBuild("x-b", errors.New("bad template"))
	m.RecordBuild("x-c", fmt.Errorf("%w: csp", loader.ErrPolicy))
	m.RecordBuild("x-d", fmt.Errorf("%w: csp", loader.ErrPolicy))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleBuilds.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleBuilds.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ModuleBuilds.WithLabelValues("policy")))
}

func TestRecordPass(t *testing.T) {
	m := New()
	m.RecordPass("x-list", time.Millisecond, vdom.Stats{TextUpdates: 2, Appended: 1, Failures: 1})
	m.RecordPass("x-list", time.Millisecond, vdom.Stats{})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Passes.WithLabelValues("x-list")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PatchFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Mutations))
}

func TestWriteText(t *testing.T) {
	m := New()
	m.RecordCompile(nil)
	m.Instances.Set(3)

	var sb strings.Builder
	require.NoError(t, m.WriteText(&sb))
	assert.Contains(t, sb.String(), `cove_compiler_compiles_total{result="ok"} 1`)
	assert.Contains(t, sb.String(), "cove_runtime_instances 3")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordCompile(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Compiles.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Compiles.WithLabelValues("ok")))
}
