package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers returns a copy of fields without nil values and nil
// pointers. Non-nil pointers are replaced by the value they point to.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		if v.Kind() != reflect.Ptr {
			omitted[key] = value
			continue
		}

		if v.IsNil() {
			continue
		}

		omitted[key] = v.Elem().Interface()
	}

	return omitted
}
