package security

import (
	"fmt"
	"reflect"
)

type htmlFragment struct {
	Tag   string
	Attr  string
	Value string
	Text  string
}

var reflectFragment = reflect.TypeOf(htmlFragment{})

func (f htmlFragment) String() string {
	return fmt.Sprintf(`<%s %s="%s">%s</%s>`, f.Tag, f.Attr, f.Value, f.Text, f.Tag)
}
