package kmlimport

// schemaAliases maps custom element names to their base names. The
// document format lets a Schema declaration rename standard section
// names, so the table has to be consulted before every structural
// element-name comparison. Parents are resolved transitively at
// declaration time so lookups are always a single hop.
type schemaAliases map[string]string

func (t schemaAliases) declare(name, parent string) {
	if name == "" || parent == "" {
		return
	}
	t[name] = t.resolve(parent)
}

func (t schemaAliases) resolve(name string) string {
	if base, ok := t[name]; ok {
		return base
	}
	return name
}
