package projection

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type widgetProjection struct{}
type otherWidgetProjection struct{}

func TestContractIDResolver_DefaultNamingIsPackageQualified(t *testing.T) {
	r := NewContractIDResolver(nil)
	name := r.Resolve(widgetProjection{})
	assert.Contains(t, string(name), "widgetProjection")
}

func TestContractIDResolver_ResolvesPointersToTheSameNameAsValues(t *testing.T) {
	r := NewContractIDResolver(nil)
	assert.Equal(t, r.Resolve(widgetProjection{}), r.Resolve(&widgetProjection{}))
}

func TestContractIDResolver_DistinctTypesGetDistinctNames(t *testing.T) {
	r := NewContractIDResolver(nil)
	assert.NotEqual(t, r.Resolve(widgetProjection{}), r.Resolve(otherWidgetProjection{}))
}

func TestContractIDResolver_ResultIsMemoizedPerType(t *testing.T) {
	calls := 0
	r := NewContractIDResolver(func(t reflect.Type) string {
		calls++
		return t.Name()
	})

	r.Resolve(widgetProjection{})
	r.Resolve(widgetProjection{})
	r.Resolve(widgetProjection{})

	assert.Equal(t, 1, calls, "naming function runs once per distinct Go type")
}

func TestContractIDResolver_CustomNamingOverridesDefault(t *testing.T) {
	r := NewContractIDResolver(func(t reflect.Type) string {
		return "fixed-name"
	})
	assert.Equal(t, Name("fixed-name"), r.Resolve(widgetProjection{}))
}
