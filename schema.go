package flowmesh

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// DefineSchemaFor reflects a JSON schema from T and registers it in the
// mesh's registry under T's type name. Fields are required unless tagged
// omitempty, matching jsonschema reflection defaults.
//
// It panics on types that cannot be reflected (channels, funcs, ...);
// schemas are defined at startup where that is a programming error.
func DefineSchemaFor[T any](m *FlowMesh) map[string]any {
	t := reflect.TypeFor[T]()

	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		panic(fmt.Sprintf("flowmesh: schema reflection for %s failed: %v", t, err))
	}

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("flowmesh: marshal schema for %s: %v", t, err))
	}
	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		panic(fmt.Sprintf("flowmesh: decode schema for %s: %v", t, err))
	}

	m.reg.RegisterSchema(t.Name(), asMap)
	return asMap
}
