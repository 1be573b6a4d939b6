package settlement

import (
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// decodeBig5 converts a Big5-encoded settlement file's raw bytes to a
// UTF-8 string so the fixed-width line parser can operate on runes
// without depending on the source encoding's byte width.
func decodeBig5(raw []byte) (string, error) {
	decoded, _, err := transform.Bytes(traditionalchinese.Big5.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// encodeBig5 is the inverse, used when a settlement confirmation file
// must be re-emitted in the same encoding it was received in.
func encodeBig5(s string) ([]byte, error) {
	encoded, _, err := transform.Bytes(traditionalchinese.Big5.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return encoded, nil
}
