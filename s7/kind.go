package s7

import "fmt"

// Kind identifies a protocol unit: a message layout with a Format and an
// Unformat function.
type Kind uint8

const (
	KindCreateReference Kind = iota + 1
	KindEstablishAssociation
	KindRead
	KindWrite
	KindComCreateReference
	KindComConfirmMessage
)

func (k Kind) String() string {
	switch k {
	case KindCreateReference:
		return "CreateReference"
	case KindEstablishAssociation:
		return "EstablishAssociation"
	case KindRead:
		return "ReadRequest"
	case KindWrite:
		return "WriteRequest"
	case KindComCreateReference:
		return "ComCreateReference"
	case KindComConfirmMessage:
		return "ComConfirmMessage"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Special reports whether the unit is sent exactly as formatted, bypassing
// the framing's Extend and Deflate.
func (k Kind) Special() bool {
	switch k {
	case KindCreateReference, KindComCreateReference, KindComConfirmMessage:
		return true
	default:
		return false
	}
}

// Serial reports whether the unit is a PPI control frame.
func (k Kind) Serial() bool {
	return k == KindComCreateReference || k == KindComConfirmMessage
}

// Format encodes input, which must be the unit's input struct or a pointer to it.
func (k Kind) Format(input any) ([]byte, error) {
	switch k {
	case KindCreateReference:
		in, err := inputOf[CreateReferenceInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatCreateReference(in)
	case KindEstablishAssociation:
		in, err := inputOf[EstablishAssociationInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatEstablishAssociation(in)
	case KindRead:
		in, err := inputOf[ReadRequestInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatReadRequest(in)
	case KindWrite:
		in, err := inputOf[WriteRequestInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatWriteRequest(in)
	case KindComCreateReference:
		in, err := inputOf[ComCreateReferenceInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatComCreateReference(in)
	case KindComConfirmMessage:
		in, err := inputOf[ComConfirmMessageInput](k, input)
		if err != nil {
			return nil, err
		}

		return FormatComConfirmMessage(in)
	default:
		return nil, fmt.Errorf("%w: unknown unit %s", ErrInvalidInput, k)
	}
}

// Unformat decodes a response into the unit's output struct (returned by value).
func (k Kind) Unformat(b []byte) (any, error) {
	switch k {
	case KindCreateReference:
		return UnformatCreateReference(b)
	case KindEstablishAssociation:
		return UnformatEstablishAssociation(b)
	case KindRead:
		return UnformatReadRequest(b)
	case KindWrite:
		return UnformatWriteRequest(b)
	case KindComCreateReference, KindComConfirmMessage:
		return UnformatCom(b)
	default:
		return nil, fmt.Errorf("%w: unknown unit %s", ErrInvalidInput, k)
	}
}

func inputOf[T any](k Kind, input any) (T, error) {
	switch v := input.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}

	var zero T

	return zero, fmt.Errorf("%w: %s cannot format %T", ErrInvalidInput, k, input)
}
