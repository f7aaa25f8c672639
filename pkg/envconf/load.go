package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
)

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Load fills the exported fields of the struct pointed to by dst from the
// environment. A field tagged `env:"NAME"` is required unless it also carries
// a `default:"..."` tag. Untagged struct fields are loaded recursively.
//
// Every problem is reported, not just the first: the returned error joins
// one error per bad variable.
func Load(dst any) error {
	v := reflect.ValueOf(dst)
	if dst == nil || v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	if v.Elem().Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	var errs []error

	walk(v.Elem(), &errs)

	return errors.Join(errs...)
}

func walk(v reflect.Value, errs *[]error) {
	t := v.Type()

	for i := range v.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		fv := v.Field(i)
		tag := sf.Tag.Get("env")

		switch {
		case tag == "-":
		case tag != "":
			err := loadField(fv, sf, tag)
			if err != nil {
				*errs = append(*errs, err)
			}
		case fv.Kind() == reflect.Struct:
			walk(fv, errs)
		case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}

			walk(fv.Elem(), errs)
		}
	}
}

func loadField(fv reflect.Value, sf reflect.StructField, name string) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		raw, ok = sf.Tag.Lookup("default")
		if !ok {
			return fmt.Errorf("%w: %s (field %q)", ErrMissingRequired, name, sf.Name)
		}
	}

	err := setValue(fv, raw)
	if err != nil {
		return fmt.Errorf("parse %s for field %q: %w", name, sf.Name, err)
	}

	return nil
}

//nolint:cyclop
func setValue(fv reflect.Value, raw string) error {
	if reflect.PointerTo(fv.Type()).Implements(textUnmarshalerType) {
		u, _ := fv.Addr().Interface().(encoding.TextUnmarshaler)

		return u.UnmarshalText([]byte(raw))
	}

	var err error

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		var b bool

		b, err = strconv.ParseBool(raw)
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64

		if fv.Type() == durationType {
			var d time.Duration

			d, err = time.ParseDuration(raw)
			n = int64(d)
		} else {
			n, err = strconv.ParseInt(raw, 10, fv.Type().Bits())
		}

		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64

		n, err = strconv.ParseUint(raw, 10, fv.Type().Bits())
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		var f float64

		f, err = strconv.ParseFloat(raw, fv.Type().Bits())
		fv.SetFloat(f)
	case reflect.Slice:
		return setList(fv, raw)
	case reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())

		err = setValue(elem.Elem(), raw)
		if err == nil {
			fv.Set(elem)
		}
	default:
		return fmt.Errorf("%s: %w", fv.Type(), ErrUnsupportedType)
	}

	return err
}

// setList parses a comma separated list, dropping empty items.
func setList(fv reflect.Value, raw string) error {
	elemType := fv.Type().Elem()
	if elemType.Kind() != reflect.String {
		return fmt.Errorf("%s: %w", fv.Type(), ErrUnsupportedType)
	}

	out := reflect.MakeSlice(fv.Type(), 0, strings.Count(raw, ",")+1)

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = reflect.Append(out, reflect.ValueOf(item).Convert(elemType))
		}
	}

	fv.Set(out)

	return nil
}
