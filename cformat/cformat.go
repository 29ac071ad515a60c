// Package cformat renders C printf templates with vsnprintf semantics. The
// arguments are not Go values but an Args source, so the same engine serves
// fixed server templates with explicit values and attacker-supplied templates
// whose arguments are whatever words sit in the caller's frame.
package cformat

import (
	"math"
	"strconv"
	"strings"
)

// Args supplies the variadic arguments of one Format call. Arguments are
// 32-bit words addressed by index; conversions that take 64-bit values read
// two consecutive words, low word first.
type Args interface {
	// Word returns the i-th argument word.
	Word(i int) uint32

	// String returns the NUL-terminated string the i-th argument points at,
	// reading at most limit bytes when limit is non-negative.
	String(i int, limit int) []byte

	// Store writes the low size bytes of v through the pointer held in the
	// i-th argument (the %n family).
	Store(i int, size int, v uint64)
}

// Format renders template into dst the way vsnprintf does: at most len(dst)-1
// bytes are written followed by a NUL, and the return value is the length the
// output would have had without truncation. %n stores that running length.
//
// Parameters:
//   - dst: Destination buffer; its length is the capacity
//   - template: The format template, read up to its first NUL byte
//   - args: Source of argument words
//
// Returns:
//   - The untruncated output length
func Format(dst []byte, template []byte, args Args) int {
	w := &writer{dst: dst}
	p := &parser{tpl: template, args: args}
	p.run(w)

	if len(dst) > 0 {
		end := w.n
		if end > len(dst)-1 {
			end = len(dst) - 1
		}
		dst[end] = 0
	}

	return w.n
}

type writer struct {
	dst []byte
	n   int
}

func (w *writer) byte(b byte) {
	if w.n < len(w.dst)-1 {
		w.dst[w.n] = b
	}
	w.n++
}

func (w *writer) string(s string) {
	for i := 0; i < len(s); i++ {
		w.byte(s[i])
	}
}

func (w *writer) pad(b byte, n int) {
	for ; n > 0; n-- {
		w.byte(b)
	}
}

type directive struct {
	left, plus, space, alt, zero bool
	width                        int
	prec                         int // -1 when absent
	length                       string
	verb                         byte
}

type parser struct {
	tpl    []byte
	args   Args
	cursor int
}

func (p *parser) run(w *writer) {
	for i := 0; i < len(p.tpl); {
		c := p.tpl[i]
		if c == 0 {
			return
		}

		if c != '%' {
			w.byte(c)
			i++
			continue
		}

		start := i
		s, pos, next, ok := p.parse(i + 1)
		if !ok {
			w.string(string(p.tpl[start:next]))
			i = next
			continue
		}

		p.convert(w, s, pos)
		i = next
	}
}

// parse reads one directive starting just after '%'. pos is the zero-based
// positional argument index or -1.
func (p *parser) parse(i int) (s directive, pos int, next int, ok bool) {
	s.prec = -1
	pos = -1

	if j, n := p.digits(i); j > i && j < len(p.tpl) && p.tpl[j] == '$' && n > 0 {
		pos = n - 1
		i = j + 1
	}

flags:
	for i < len(p.tpl) {
		switch p.tpl[i] {
		case '-':
			s.left = true
		case '+':
			s.plus = true
		case ' ':
			s.space = true
		case '#':
			s.alt = true
		case '0':
			s.zero = true
		case '\'':
		default:
			break flags
		}
		i++
	}

	if i < len(p.tpl) && p.tpl[i] == '*' {
		v := int(int32(p.args.Word(p.nextIndex())))
		if v < 0 {
			s.left = true
			v = -v
		}
		s.width = v
		i++
	} else {
		i, s.width = p.digits(i)
	}

	if i < len(p.tpl) && p.tpl[i] == '.' {
		i++
		if i < len(p.tpl) && p.tpl[i] == '*' {
			v := int(int32(p.args.Word(p.nextIndex())))
			if v >= 0 {
				s.prec = v
			}
			i++
		} else {
			i, s.prec = p.digits(i)
		}
	}

	for _, l := range []string{"hh", "ll", "h", "l", "L", "q", "j", "z", "t"} {
		if strings.HasPrefix(string(p.tpl[i:]), l) {
			s.length = l
			i += len(l)
			break
		}
	}

	if i >= len(p.tpl) || p.tpl[i] == 0 {
		return s, pos, i, false
	}

	s.verb = p.tpl[i]
	switch s.verb {
	case 'd', 'i', 'u', 'o', 'x', 'X', 'c', 's', 'p', 'n', '%', 'f', 'F', 'e', 'E', 'g', 'G':
		return s, pos, i + 1, true
	}

	return s, pos, i + 1, false
}

func (p *parser) digits(i int) (int, int) {
	n := 0
	for i < len(p.tpl) && p.tpl[i] >= '0' && p.tpl[i] <= '9' {
		if n < 1<<20 {
			n = n*10 + int(p.tpl[i]-'0')
		}
		i++
	}

	return i, n
}

func (p *parser) nextIndex() int {
	i := p.cursor
	p.cursor++
	return i
}

func (p *parser) index(pos int, words int) int {
	if pos >= 0 {
		return pos
	}

	i := p.cursor
	p.cursor += words
	return i
}

func (p *parser) wide(s directive) bool {
	switch s.length {
	case "ll", "q", "j":
		return true
	}

	return false
}

func (p *parser) unsigned(s directive, pos int) uint64 {
	if p.wide(s) {
		i := p.index(pos, 2)
		return uint64(p.args.Word(i)) | uint64(p.args.Word(i+1))<<32
	}

	v := p.args.Word(p.index(pos, 1))
	switch s.length {
	case "hh":
		return uint64(uint8(v))
	case "h":
		return uint64(uint16(v))
	}

	return uint64(v)
}

func (p *parser) signed(s directive, pos int) int64 {
	v := p.unsigned(s, pos)
	switch {
	case p.wide(s):
		return int64(v)
	case s.length == "hh":
		return int64(int8(v))
	case s.length == "h":
		return int64(int16(v))
	}

	return int64(int32(v))
}

func (p *parser) convert(w *writer, s directive, pos int) {
	switch s.verb {
	case '%':
		w.byte('%')
	case 'd', 'i':
		v := p.signed(s, pos)
		mag := uint64(v)
		if v < 0 {
			mag = uint64(-v)
		}
		sign := ""
		switch {
		case v < 0:
			sign = "-"
		case s.plus:
			sign = "+"
		case s.space:
			sign = " "
		}
		integer(w, s, sign, mag, 10)
	case 'u':
		integer(w, s, "", p.unsigned(s, pos), 10)
	case 'o':
		integer(w, s, "", p.unsigned(s, pos), 8)
	case 'x', 'X':
		integer(w, s, "", p.unsigned(s, pos), 16)
	case 'p':
		v := p.args.Word(p.index(pos, 1))
		if v == 0 {
			field(w, s, "", "(nil)")
			return
		}
		s.alt = true
		s.verb = 'x'
		integer(w, s, "", uint64(v), 16)
	case 'c':
		b := byte(p.args.Word(p.index(pos, 1)))
		s.zero = false
		field(w, s, "", string([]byte{b}))
	case 's':
		str := p.args.String(p.index(pos, 1), s.prec)
		s.zero = false
		field(w, s, "", string(str))
	case 'n':
		size := 4
		switch s.length {
		case "hh":
			size = 1
		case "h":
			size = 2
		case "ll", "q", "j":
			size = 8
		}
		p.args.Store(p.index(pos, 1), size, uint64(w.n))
	case 'f', 'F', 'e', 'E', 'g', 'G':
		i := p.index(pos, 2)
		bits := uint64(p.args.Word(i)) | uint64(p.args.Word(i+1))<<32
		float(w, s, math.Float64frombits(bits))
	}
}

func integer(w *writer, s directive, sign string, mag uint64, base int) {
	digits := strconv.FormatUint(mag, base)
	if s.verb == 'X' {
		digits = strings.ToUpper(digits)
	}

	if s.prec >= 0 {
		if s.prec == 0 && mag == 0 {
			digits = ""
		}
		if len(digits) < s.prec {
			digits = strings.Repeat("0", s.prec-len(digits)) + digits
		}
		s.zero = false
	}

	prefix := sign
	if s.alt {
		switch {
		case base == 8 && !strings.HasPrefix(digits, "0"):
			digits = "0" + digits
		case base == 16 && mag != 0 && s.verb == 'X':
			prefix += "0X"
		case base == 16 && mag != 0:
			prefix += "0x"
		}
	}

	field(w, s, prefix, digits)
}

func float(w *writer, s directive, v float64) {
	sign := ""
	switch {
	case math.Signbit(v):
		sign = "-"
		v = -v
	case s.plus:
		sign = "+"
	case s.space:
		sign = " "
	}

	upper := s.verb == 'F' || s.verb == 'E' || s.verb == 'G'
	var body string
	switch {
	case math.IsNaN(v):
		body, s.zero = "nan", false
	case math.IsInf(v, 0):
		body, s.zero = "inf", false
	default:
		prec := s.prec
		if prec < 0 {
			prec = 6
		}
		verb := s.verb | 0x20
		if verb == 'g' && prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(v, verb, prec, 64)
	}

	if upper {
		body = strings.ToUpper(body)
	}

	field(w, s, sign, body)
}

// field writes prefix and body padded to the directive width. Zero padding
// goes between the prefix and the body.
func field(w *writer, s directive, prefix, body string) {
	fill := s.width - len(prefix) - len(body)
	switch {
	case s.left:
		w.string(prefix)
		w.string(body)
		w.pad(' ', fill)
	case s.zero:
		w.string(prefix)
		w.pad('0', fill)
		w.string(body)
	default:
		w.pad(' ', fill)
		w.string(prefix)
		w.string(body)
	}
}
