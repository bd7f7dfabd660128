package value

import (
	"reflect"
	"strings"
	"sync"

	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/pstring"
	"github.com/wippyai/xll-runtime/xlcall"
)

// AlternativeSet is the list of alternatives a conversion may select from,
// with an optional catch-all for arithmetic sources that no alternative
// accepts without loss.
type AlternativeSet struct {
	kinds    []Kind
	catchAll Kind
	key      string
}

// NewSet builds a set from kinds. Duplicates are dropped.
func NewSet(kinds ...Kind) AlternativeSet {
	s := AlternativeSet{catchAll: -1}
	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if !k.Valid() || seen[k] {
			continue
		}
		seen[k] = true
		s.kinds = append(s.kinds, k)
	}
	s.key = s.buildKey()
	return s
}

// WithCatchAll designates k as the catch-all arithmetic alternative. Only
// Num and Int can receive arithmetic sources; k must be in the set.
func (s AlternativeSet) WithCatchAll(k Kind) AlternativeSet {
	if (k == KindNum || k == KindInt) && s.Contains(k) {
		s.catchAll = k
	} else {
		s.catchAll = -1
	}
	s.key = s.buildKey()
	return s
}

// Kinds returns the alternatives in list order.
func (s AlternativeSet) Kinds() []Kind { return append([]Kind(nil), s.kinds...) }

// CatchAll returns the catch-all alternative, if any.
func (s AlternativeSet) CatchAll() (Kind, bool) { return s.catchAll, s.catchAll >= 0 }

// Contains reports whether k is in the set.
func (s AlternativeSet) Contains(k Kind) bool {
	for _, x := range s.kinds {
		if x == k {
			return true
		}
	}
	return false
}

func (s AlternativeSet) String() string { return s.key }

func (s AlternativeSet) buildKey() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range s.kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k.String())
		if k == s.catchAll {
			b.WriteByte('*')
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Alternatives is the full set with Num as the arithmetic catch-all.
var Alternatives = NewSet(
	KindNum, KindStr, KindBool, KindErr, KindInt, KindSRef,
	KindRef, KindMulti, KindFlow, KindBigData, KindMissing, KindNil,
).WithCatchAll(KindNum)

type rank int

const (
	rankNone rank = iota
	rankCatchAll
	rankConversion
	rankPromotion
	rankExact
)

var (
	typeNum     = reflect.TypeFor[Num]()
	typeStr     = reflect.TypeFor[Str]()
	typeBool    = reflect.TypeFor[Bool]()
	typeErr     = reflect.TypeFor[Err]()
	typeInt     = reflect.TypeFor[Int]()
	typeSRef    = reflect.TypeFor[SRef]()
	typeRef     = reflect.TypeFor[Ref]()
	typeMulti   = reflect.TypeFor[Multi]()
	typeFlow    = reflect.TypeFor[Flow]()
	typeBigData = reflect.TypeFor[BigData]()
	typeMissing = reflect.TypeFor[Missing]()
	typeNil     = reflect.TypeFor[Nil]()

	typeFloat64 = reflect.TypeFor[float64]()
	typeInt32   = reflect.TypeFor[int32]()
	typeString  = reflect.TypeFor[string]()
	typeUnits   = reflect.TypeFor[[]uint16]()
	typeBoolean = reflect.TypeFor[bool]()
	typeXLError = reflect.TypeFor[xlcall.Error]()
	typeWide    = reflect.TypeFor[pstring.Wide]()
	typeNarrow  = reflect.TypeFor[pstring.Narrow]()
)

var ownTypes = [NumKinds]reflect.Type{
	KindNum: typeNum, KindStr: typeStr, KindBool: typeBool, KindErr: typeErr,
	KindInt: typeInt, KindSRef: typeSRef, KindRef: typeRef, KindMulti: typeMulti,
	KindFlow: typeFlow, KindBigData: typeBigData, KindMissing: typeMissing, KindNil: typeNil,
}

func isArithmetic(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// rankFor ranks src against a single alternative, ignoring any catch-all.
func rankFor(k Kind, src reflect.Type) rank {
	if src == ownTypes[k] {
		return rankExact
	}
	switch k {
	case KindNum:
		switch {
		case src == typeFloat64:
			return rankExact
		case src.Kind() == reflect.Float32, src.Kind() == reflect.Float64:
			return rankPromotion
		}
		switch src.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return rankConversion
		}
	case KindInt:
		if src == typeInt32 {
			return rankExact
		}
		switch src.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16:
			return rankPromotion
		case reflect.Int32:
			return rankConversion
		}
	case KindStr:
		switch {
		case src == typeWide:
			return rankExact
		case src == typeString, src == typeUnits:
			return rankPromotion
		case src == typeNarrow, src.Kind() == reflect.String:
			return rankConversion
		}
	case KindBool:
		if src == typeBoolean {
			return rankExact
		}
	case KindErr:
		if src == typeXLError {
			return rankExact
		}
	}
	return rankNone
}

type resolveKey struct {
	src reflect.Type
	set string
}

type resolved struct {
	kind Kind
	err  error
}

var resolveCache sync.Map

// Resolve selects the unique best alternative of set for values of type src.
func Resolve(src reflect.Type, set AlternativeSet) (Kind, error) {
	if src == nil {
		return -1, errors.New(errors.PhaseResolve, errors.KindNoViable).
			GoType("nil").
			Detail("no alternative of %s accepts nil", set).
			Build()
	}
	key := resolveKey{src: src, set: set.key}
	if r, ok := resolveCache.Load(key); ok {
		res := r.(resolved)
		return res.kind, res.err
	}
	kind, err := resolve(src, set)
	resolveCache.Store(key, resolved{kind: kind, err: err})
	return kind, err
}

func resolve(src reflect.Type, set AlternativeSet) (Kind, error) {
	best := rankNone
	var candidates []Kind
	for _, k := range set.kinds {
		r := rankFor(k, src)
		if r == rankNone && k == set.catchAll && isArithmetic(src.Kind()) {
			r = rankCatchAll
		}
		switch {
		case r == rankNone || r < best:
		case r > best:
			best = r
			candidates = append(candidates[:0], k)
		default:
			candidates = append(candidates, k)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return -1, errors.New(errors.PhaseResolve, errors.KindNoViable).
			GoType(src.String()).
			Detail("no alternative of %s accepts it", set).
			Build()
	}
	names := make([]string, len(candidates))
	for i, k := range candidates {
		names[i] = k.String()
	}
	return -1, errors.New(errors.PhaseResolve, errors.KindAmbiguous).
		GoType(src.String()).
		Value(candidates).
		Detail("alternatives %s of %s match equally", strings.Join(names, ", "), set).
		Build()
}

// MustResolve is Resolve for package initialization. It panics on failure.
func MustResolve(src reflect.Type, set AlternativeSet) Kind {
	k, err := Resolve(src, set)
	if err != nil {
		panic(err)
	}
	return k
}

// ResolveFor resolves the static type T.
func ResolveFor[T any](set AlternativeSet) (Kind, error) {
	return Resolve(reflect.TypeFor[T](), set)
}
