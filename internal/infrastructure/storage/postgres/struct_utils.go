package postgres

import (
	"reflect"
	"strings"
	"sync"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ContainsPattern turns user input into an ILIKE pattern matching it as a
// literal substring. Backslash is the default LIKE escape in PostgreSQL.
func ContainsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// ExtractDBColumns returns the column names from the "db" tags of T,
// descending into embedded structs such as entity.BaseEntity. Fields tagged
// "-" (invoice items, for instance) are skipped.
//
//	columns := ExtractDBColumns[product.Product]()
//	// ["id", "deletion_mark", "version", "created_at", "updated_at", "code", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return extractColumnsFromType(reflect.TypeOf(zero))
}

func extractColumnsFromType(t reflect.Type) []string {
	meta := typeMetadataFor(t)
	if meta == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	cols := make([]string, 0, len(meta.fields))
	for _, f := range meta.order {
		if f.embedded {
			cols = append(cols, extractColumnsFromType(t.Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.dbTag)
	}
	return cols
}

type fieldInfo struct {
	index    int
	dbTag    string
	embedded bool
}

// typeMetadata is the cached db-tag layout of a struct type.
type typeMetadata struct {
	fields []fieldInfo
	// order keeps tagged and embedded fields in declaration order.
	order []fieldInfo
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

// typeMetadataFor returns the layout of t (a struct or pointer to struct),
// computing it once per type.
func typeMetadataFor(t reflect.Type) *typeMetadata {
	if t == nil {
		return nil
	}
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	if t.Elem().Kind() != reflect.Struct {
		return nil
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	st := t.Elem()
	meta := &typeMetadata{}
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Anonymous {
			meta.order = append(meta.order, fieldInfo{index: i, embedded: true})
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		fi := fieldInfo{index: i, dbTag: tag}
		meta.fields = append(meta.fields, fi)
		meta.order = append(meta.order, fi)
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column map using "db" tags, including
// the fields of embedded structs.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := typeMetadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.order {
		if f.embedded {
			for k, val := range StructToMap(rv.Field(f.index).Interface()) {
				res[k] = val
			}
			continue
		}
		res[f.dbTag] = rv.Field(f.index).Interface()
	}
	return res
}

// ColumnMap is StructToMap restricted to cols.
func ColumnMap(v any, cols []string) map[string]any {
	all := StructToMap(v)
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		if val, ok := all[c]; ok {
			res[c] = val
		}
	}
	return res
}
