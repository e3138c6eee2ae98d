package ustr

// Ustr is a byte-string path or path component. Paths come out of user
// memory as bytes; keeping them that way avoids conversions on every
// directory operation.
type Ustr []uint8

func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

func MkUstr() Ustr {
	return Ustr{}
}

func MkUstrRoot() Ustr {
	return Ustr("/")
}

var Dot = Ustr{'.'}
var DotDot = Ustr{'.', '.'}

// MkUstrSlice interprets buf as a NUL-terminated string.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return Ustr(buf[:i])
		}
	}
	return Ustr(buf)
}

func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	if len(tmp) > 0 && tmp[len(tmp)-1] != '/' {
		tmp = append(tmp, '/')
	}
	return append(tmp, p...)
}

func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

func (us Ustr) String() string {
	return string(us)
}
