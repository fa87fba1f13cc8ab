package bencode

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Encode produces the canonical bencoding of v. Dictionary keys are
// sorted by raw byte order before emission, so Encode is deterministic
// and its output re-decodes to an equal value tree.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch v := v.(type) {
	case int:
		encodeInt(buf, int64(v))
	case int64:
		encodeInt(buf, v)
	case uint32:
		encodeInt(buf, int64(v))
	case string:
		encodeString(buf, v)
	case []byte:
		encodeString(buf, string(v))
	case []interface{}:
		buf.WriteByte('l')
		for _, item := range v {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte('e')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('d')
		for _, key := range keys {
			encodeString(buf, key)
			if err := encodeValue(buf, v[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('e')
	default:
		return fmt.Errorf("bencode: cannot encode value of type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n int64) {
	buf.WriteByte('i')
	buf.WriteString(strconv.FormatInt(n, 10))
	buf.WriteByte('e')
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.WriteString(s)
}
