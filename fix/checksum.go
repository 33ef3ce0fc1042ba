package fix

import (
	"bytes"
	"fmt"
	"strconv"
)

// Checksum is the FIX CheckSum(10) value of b: the byte sum mod 256,
// zero-padded to three digits. Pass every byte preceding the "10=" field,
// including the delimiter that ends the previous field.
func Checksum(b []byte) string {
	var sum uint32
	for _, c := range b {
		sum += uint32(c)
	}
	return fmt.Sprintf("%03d", sum%256)
}

// Normalize returns a copy of raw with surrounding whitespace removed and
// every alt byte replaced by SOH. Log captures and replay files use a
// printable delimiter; the wire uses SOH.
func Normalize(raw []byte, alt byte) []byte {
	trimmed := bytes.Trim(raw, " \t\r\n")
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	if alt == 0 || alt == SOH {
		return out
	}
	for i, c := range out {
		if c == alt {
			out[i] = SOH
		}
	}
	return out
}

// Field is one tag=value pair for Build.
type Field struct {
	Tag   int
	Value string
}

// Build assembles a complete message with correct BodyLength and CheckSum.
// body must start with MsgType(35) and must not contain tags 8, 9 or 10.
func Build(beginString string, body ...Field) []byte {
	var b bytes.Buffer
	for _, f := range body {
		b.WriteString(strconv.Itoa(f.Tag))
		b.WriteByte('=')
		b.WriteString(f.Value)
		b.WriteByte(SOH)
	}

	var msg bytes.Buffer
	msg.WriteString("8=" + beginString)
	msg.WriteByte(SOH)
	msg.WriteString("9=" + strconv.Itoa(b.Len()))
	msg.WriteByte(SOH)
	msg.Write(b.Bytes())

	sum := Checksum(msg.Bytes())
	msg.WriteString("10=" + sum)
	msg.WriteByte(SOH)
	return msg.Bytes()
}

// Printable renders SOH as '|' for logs and test fixtures.
func Printable(msg []byte) string {
	return string(bytes.ReplaceAll(msg, []byte{SOH}, []byte{'|'}))
}
