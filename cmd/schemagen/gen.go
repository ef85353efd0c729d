package main

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode"

	"github.com/corrreia/nativehook/internal/gamedata"
)

// GeneratedClass holds data for code generation
type GeneratedClass struct {
	GoName    string
	ClassName string
	GoParent  string
	Fields    []GeneratedField
}

// GeneratedField holds field data for code generation
type GeneratedField struct {
	GoName     string // e.g., "Health"
	FieldName  string // e.g., "m_iHealth"
	ClassName  string // e.g., "CCSPlayerPawn"
	GoType     string // e.g., "int32"
	Networked  bool
	HasSetter  bool
	GetterFunc string // e.g., "GetPropInt"
	SetterFunc string // e.g., "SetPropInt"
}

// accessor picks the Object methods used for a schema type.
func accessor(typ string) (goType, getter, setter string, ok bool) {
	if strings.HasPrefix(typ, "char[") {
		return "string", "GetPropString", "SetPropString", true
	}
	switch typ {
	case "int32":
		return "int32", "GetPropInt", "SetPropInt", true
	case "float32":
		return "float32", "GetPropFloat", "SetPropFloat", true
	case "bool":
		return "bool", "GetPropBool", "SetPropBool", true
	case "vector":
		return "nativehook.Vector", "GetPropVector", "SetPropVector", true
	case "handle":
		return "nativehook.Handle", "GetPropHandle", "", true
	case "utlsymbol", "utlstring":
		// pooled strings need a string pool to write
		return "string", "GetPropString", "", true
	}
	return "", "", "", false
}

func processClasses(set *gamedata.Set) []GeneratedClass {
	// Fields come ordered by class then name
	var classes []GeneratedClass
	var cur *GeneratedClass
	for _, f := range set.Fields() {
		if cur == nil || cur.ClassName != f.Class {
			classes = append(classes, GeneratedClass{GoName: f.Class, ClassName: f.Class})
			cur = &classes[len(classes)-1]
			if c, ok := set.Class(f.Class); ok {
				cur.GoParent = c.Parent
			}
		}
		goType, getter, setter, ok := accessor(f.Type)
		if !ok {
			continue // Skip unsupported types
		}
		cur.Fields = append(cur.Fields, GeneratedField{
			GoName:     schemaFieldToGoName(f.Name),
			FieldName:  f.Name,
			ClassName:  f.Class,
			GoType:     goType,
			Networked:  f.Networked,
			HasSetter:  setter != "",
			GetterFunc: getter,
			SetterFunc: setter,
		})
	}

	// Parents outside this file get no conversion method
	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		known[c.ClassName] = true
	}
	for i := range classes {
		if !known[classes[i].GoParent] {
			classes[i].GoParent = ""
		}
	}
	return classes
}

// schemaFieldToGoName converts m_iHealth -> Health, m_bIsScoped -> IsScoped, etc.
func schemaFieldToGoName(field string) string {
	name := strings.TrimPrefix(field, "m_")

	// Remove common type prefixes
	prefixes := []string{"fl", "sz", "vec", "ang", "i", "b", "n", "s", "p", "e", "h"}
	for _, prefix := range prefixes {
		if len(name) > len(prefix) && strings.HasPrefix(name, prefix) {
			if unicode.IsUpper(rune(name[len(prefix)])) {
				name = name[len(prefix):]
				break
			}
		}
	}

	if len(name) > 0 {
		runes := []rune(name)
		runes[0] = unicode.ToUpper(runes[0])
		name = string(runes)
	}
	return name
}

var codeTemplate = `// Code generated by schemagen. DO NOT EDIT.

package {{.Package}}

import (
	"github.com/corrreia/nativehook/pkg/nativehook"
)
{{range $cls := .Classes}}
// {{$cls.GoName}} wraps an Object with typed accessors for {{$cls.ClassName}} schema fields.
type {{$cls.GoName}} struct {
	*nativehook.Object
}

// New{{$cls.GoName}} wraps an existing Object as a {{$cls.GoName}}.
// Returns nil if the object is nil.
func New{{$cls.GoName}}(o *nativehook.Object) *{{$cls.GoName}} {
	if o == nil {
		return nil
	}
	return &{{$cls.GoName}}{Object: o}
}
{{if $cls.GoParent}}
// {{$cls.GoParent}} views the object through its parent class.
func (e *{{$cls.GoName}}) {{$cls.GoParent}}() *{{$cls.GoParent}} {
	return New{{$cls.GoParent}}(e.Object)
}
{{end}}{{range $f := $cls.Fields}}
// {{$f.GoName}} returns the {{$f.ClassName}}::{{$f.FieldName}} property.
func (e *{{$cls.GoName}}) {{$f.GoName}}() {{$f.GoType}} {
	v, _ := e.{{$f.GetterFunc}}("{{$f.ClassName}}", "{{$f.FieldName}}")
	return v
}
{{if $f.HasSetter}}
// Set{{$f.GoName}} sets the {{$f.ClassName}}::{{$f.FieldName}} property.
func (e *{{$cls.GoName}}) Set{{$f.GoName}}(v {{$f.GoType}}) error {
	return e.{{$f.SetterFunc}}("{{$f.ClassName}}", "{{$f.FieldName}}", v)
}
{{end}}{{end}}{{end}}`

var tmpl = template.Must(template.New("objects").Parse(codeTemplate))

func generateCode(w io.Writer, pkg string, classes []GeneratedClass) error {
	err := tmpl.Execute(w, struct {
		Package string
		Classes []GeneratedClass
	}{pkg, classes})
	if err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}
