package binname

import (
	stderrors "errors"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/value"
	"github.com/wippyai/xll-runtime/xlcall"
	"go.uber.org/zap"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("binname: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Store keeps values in workbook binary names.
type Store struct {
	b *callback.Boundary
}

// New creates a store that talks to the host through b.
func New(b *callback.Boundary) *Store {
	return &Store{b: b}
}

func checkName(name string) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseEncode, "binary name is empty")
	}
	if utf8.RuneCountInString(name) > xlcall.MaxNarrowLength {
		return errors.InvalidInput(errors.PhaseEncode, "binary name longer than 255 characters")
	}
	return nil
}

// Put stores the CBOR encoding of v under name.
func (s *Store) Put(name string, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "encode binary name "+name)
	}
	return s.PutBytes(name, data)
}

// PutBytes stores data under name. The host copies the bytes, so the
// buffer is released before PutBytes returns.
func (s *Store) PutBytes(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.InvalidInput(errors.PhaseEncode, "binary name data is empty")
	}
	if uint64(len(data)) > uint64(1<<31-1) {
		return errors.Overflow(errors.PhaseEncode, []string{name}, len(data), "int32")
	}

	a := s.b.Arena()
	addr, err := a.Allocator().Alloc(uint32(len(data)), 8)
	if err != nil {
		return err
	}
	defer a.Allocator().Free(addr)
	if err := a.Space().Write(addr, data); err != nil {
		return err
	}
	if err := s.b.DefineBinaryName(name, value.BigData{Handle: addr, Size: int32(len(data))}); err != nil {
		return err
	}
	Logger().Debug("binary name stored", zap.String("name", name), zap.Int("size", len(data)))
	return nil
}

// Get decodes the data stored under name into v.
func (s *Store) Get(name string, v any) error {
	data, err := s.GetBytes(name)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode binary name "+name)
	}
	return nil
}

// GetBytes returns a copy of the data stored under name.
func (s *Store) GetBytes(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	bd, err := s.b.GetBinaryName(name)
	if err != nil {
		var xe *errors.Error
		if stderrors.As(err, &xe) && xe.Value == xlcall.RetFailed {
			return nil, errors.NotFound(errors.PhaseCall, "binary name", name)
		}
		return nil, err
	}
	if bd.Size < 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{name}, "negative binary name size")
	}
	if bd.Size == 0 {
		return []byte{}, nil
	}
	return s.b.Arena().Space().Read(bd.Handle, uint32(bd.Size))
}

// Delete removes name from the workbook.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.b.DefineBinaryName(name, value.BigData{})
}
