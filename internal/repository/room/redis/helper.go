package redis

import (
	"context"
	"reflect"

	"github.com/redis/go-redis/v9"
)

// hSetStruct writes the fields of value, a struct or pointer to struct,
// using their redis tags as field names. Nil pointer fields are skipped.
func hSetStruct(ctx context.Context, c redis.Cmdable, key string, value any) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	fields := make(map[string]any, v.NumField())

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" || tag == "-" {
			continue
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}

		fields[tag] = field.Interface()
	}

	c.HSet(ctx, key, fields)
}
