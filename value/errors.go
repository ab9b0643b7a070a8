package value

import "fmt"

func errHeadersNotObject(k Kind) error {
	return fmt.Errorf("value: headers must be an object, got %s", k)
}

func errHeaderValueNotString(key string) error {
	return fmt.Errorf("value: header %q must be a string or array of strings", key)
}
