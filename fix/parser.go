// Package fix decodes FIX tag=value execution reports into market events.
//
// The parser is tolerant by design of the upstream gateways it reads from:
// absent optional tags default to zero values, a bad checksum is reported
// as a warning flag and the event is still produced, and anything that does
// not look like a FIX message at all is ignored rather than rejected. Only a
// wrong protocol version or a structurally broken field is an error.
package fix

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stakewatch/market"
)

const (
	SOH                 byte = 0x01
	DefaultAltDelimiter byte = '|'
	DefaultBeginString       = "FIX.4.4"

	MsgTypeHeartbeat       = "0"
	MsgTypeLogon           = "A"
	MsgTypeExecutionReport = "8"
)

// Tags read by the parser.
const (
	TagAccount      = 1
	TagBeginString  = 8
	TagBodyLength   = 9
	TagCheckSum     = 10
	TagClOrdID      = 11
	TagCumQty       = 14
	TagExecID       = 17
	TagLastPx       = 31
	TagLastQty      = 32
	TagMsgSeqNum    = 34
	TagMsgType      = 35
	TagOrderID      = 37
	TagOrderQty     = 38
	TagOrdStatus    = 39
	TagPrice        = 44
	TagSide         = 54
	TagSymbol       = 55
	TagTransactTime = 60
	TagExecType     = 150
)

var (
	ErrInvalidVersion = errors.New("fix: invalid protocol version")
	ErrMalformed      = errors.New("fix: malformed field")
)

type Status int

const (
	StatusOK Status = iota
	StatusIgnored
)

func (s Status) String() string {
	if s == StatusIgnored {
		return "ignored"
	}
	return "ok"
}

// Result is the outcome of a successful Parse. Event is only meaningful when
// Status is StatusOK.
type Result struct {
	Status  Status
	MsgType string
	Event   market.ExecutionEvent
	Reason  string

	ChecksumMismatch   bool
	ExpectedChecksum   string
	ReceivedChecksum   string
	BodyLengthMismatch bool
}

// Warning reports whether the message was accepted despite a framing defect.
func (r Result) Warning() bool {
	return r.ChecksumMismatch || r.BodyLengthMismatch
}

type Option func(*Parser)

func WithBeginString(s string) Option {
	return func(p *Parser) { p.beginString = s }
}

// WithAltDelimiter sets the printable stand-in for SOH used by log captures.
// Zero disables normalization.
func WithAltDelimiter(b byte) Option {
	return func(p *Parser) { p.alt = b }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Parser) { p.log = log }
}

// Parser is safe for concurrent use; it holds no per-message state.
type Parser struct {
	beginString string
	alt         byte
	log         zerolog.Logger
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		beginString: DefaultBeginString,
		alt:         DefaultAltDelimiter,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) BeginString() string { return p.beginString }

type field struct {
	tag   int
	value string
	start int // offset of the first byte of the tag
}

// Parse decodes one message.
func (p *Parser) Parse(raw []byte) (Result, error) {
	msg := Normalize(raw, p.alt)
	if len(msg) == 0 {
		return Result{Status: StatusIgnored, Reason: "empty message"}, nil
	}
	if bytes.IndexByte(msg, SOH) < 0 {
		return Result{Status: StatusIgnored, Reason: "no field delimiter"}, nil
	}

	fields, err := split(msg)
	if err != nil {
		return Result{}, err
	}
	if len(fields) == 0 || fields[0].tag != TagBeginString {
		return Result{}, fmt.Errorf("%w: message does not start with tag 8", ErrInvalidVersion)
	}
	if fields[0].value != p.beginString {
		return Result{}, fmt.Errorf("%w: got %q want %q", ErrInvalidVersion, fields[0].value, p.beginString)
	}

	res := Result{Status: StatusOK}
	p.verifyTrailer(msg, fields, &res)

	tags := make(map[int]string, len(fields))
	for _, f := range fields {
		if _, dup := tags[f.tag]; !dup {
			tags[f.tag] = f.value
		}
	}

	res.MsgType = tags[TagMsgType]
	if res.ChecksumMismatch {
		p.log.Warn().
			Str("msg_type", res.MsgType).
			Str("expected", res.ExpectedChecksum).
			Str("received", res.ReceivedChecksum).
			Msg("Checksum mismatch, processing message anyway")
	}

	if res.MsgType != MsgTypeExecutionReport {
		res.Status = StatusIgnored
		res.Reason = fmt.Sprintf("msg type %q is not an execution report", res.MsgType)
		return res, nil
	}

	res.Event = p.event(tags, msg)
	return res, nil
}

func (p *Parser) verifyTrailer(msg []byte, fields []field, res *Result) {
	var (
		checksum   *field
		bodyLength *field
		bodyStart  = -1
	)
	for i := range fields {
		switch fields[i].tag {
		case TagCheckSum:
			if checksum == nil {
				checksum = &fields[i]
			}
		case TagBodyLength:
			if bodyLength == nil {
				bodyLength = &fields[i]
				if i+1 < len(fields) {
					bodyStart = fields[i+1].start
				}
			}
		}
	}

	if checksum == nil {
		res.ChecksumMismatch = true
		res.ExpectedChecksum = Checksum(msg)
		return
	}

	res.ExpectedChecksum = Checksum(msg[:checksum.start])
	res.ReceivedChecksum = checksum.value
	res.ChecksumMismatch = res.ExpectedChecksum != checksum.value

	if bodyLength != nil && bodyStart >= 0 && bodyStart <= checksum.start {
		n, err := strconv.Atoi(bodyLength.value)
		if err != nil || n != checksum.start-bodyStart {
			res.BodyLengthMismatch = true
		}
	}
}

func (p *Parser) event(tags map[int]string, msg []byte) market.ExecutionEvent {
	return market.ExecutionEvent{
		MsgSeqNum:          p.intTag(tags, TagMsgSeqNum),
		Symbol:             tags[TagSymbol],
		Side:               parseSide(tags[TagSide]),
		Quantity:           p.intTag(tags, TagOrderQty),
		Price:              p.decimalTag(tags, TagPrice),
		LastQty:            p.intTag(tags, TagLastQty),
		LastPx:             p.decimalTag(tags, TagLastPx),
		ExecutionType:      tags[TagExecType],
		OrdStatus:          tags[TagOrdStatus],
		CumulativeQuantity: p.intTag(tags, TagCumQty),
		OrderID:            tags[TagOrderID],
		ClientOrderID:      tags[TagClOrdID],
		ExecID:             tags[TagExecID],
		Account:            tags[TagAccount],
		TransactTime:       p.timeTag(tags, TagTransactTime),
		Raw:                string(msg),
	}
}

func (p *Parser) intTag(tags map[int]string, tag int) int64 {
	s, ok := tags[tag]
	if !ok || s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		p.log.Warn().Int("tag", tag).Str("value", s).Msg("Unparseable quantity, defaulting to 0")
		return 0
	}
	return d.IntPart()
}

func (p *Parser) decimalTag(tags map[int]string, tag int) decimal.Decimal {
	s, ok := tags[tag]
	if !ok || s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		p.log.Warn().Int("tag", tag).Str("value", s).Msg("Unparseable price, defaulting to 0")
		return decimal.Zero
	}
	return d
}

func (p *Parser) timeTag(tags map[int]string, tag int) time.Time {
	s, ok := tags[tag]
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := ParseUTCTimestamp(s)
	if err != nil {
		p.log.Warn().Int("tag", tag).Str("value", s).Msg("Unparseable timestamp, ignoring")
		return time.Time{}
	}
	return t
}

// ParseUTCTimestamp accepts the FIX UTCTimestamp format with optional
// fractional seconds, falling back to RFC 3339.
func ParseUTCTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse("20060102-15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad UTCTimestamp %q", s)
	}
	return t.UTC(), nil
}

func parseSide(s string) market.Side {
	switch s {
	case "1", "3": // buy, buy minus
		return market.SideBuy
	case "2", "4": // sell, sell plus
		return market.SideSell
	case "5", "6": // sell short, sell short exempt
		return market.SideSellShort
	default:
		return market.SideUnknown
	}
}

func split(msg []byte) ([]field, error) {
	fields := make([]field, 0, 24)
	pos := 0
	for pos < len(msg) {
		end := bytes.IndexByte(msg[pos:], SOH)
		if end < 0 {
			end = len(msg)
		} else {
			end += pos
		}
		seg := msg[pos:end]
		if len(seg) > 0 {
			eq := bytes.IndexByte(seg, '=')
			if eq <= 0 {
				return nil, fmt.Errorf("%w: %q at offset %d", ErrMalformed, trimForErr(seg), pos)
			}
			tag, err := strconv.Atoi(string(seg[:eq]))
			if err != nil || tag <= 0 {
				return nil, fmt.Errorf("%w: bad tag %q at offset %d", ErrMalformed, seg[:eq], pos)
			}
			fields = append(fields, field{tag: tag, value: string(seg[eq+1:]), start: pos})
		}
		pos = end + 1
	}
	return fields, nil
}

func trimForErr(b []byte) string {
	const n = 64
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
