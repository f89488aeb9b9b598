package types

// Kind is the variant discriminator of a DataType.
type Kind int

const (
	Void Kind = iota
	Bool
	SByte
	Byte
	Short
	UShort
	Char
	Int
	UInt
	Long
	ULong
	Float
	Double
	Name
	String
	Null
	Enum
	Struct
	Class
	StaticArray
	DynamicArray
	ArrayRef
	StrongPtr
	WeakPtr
	RawPtr
	FuncPtr
	Delegate
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case SByte:
		return "sbyte"
	case Byte:
		return "byte"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Char:
		return "char"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Float:
		return "float"
	case Double:
		return "double"
	case Name:
		return "name"
	case String:
		return "string"
	case Null:
		return "null"
	case Enum:
		return "enum"
	case Struct:
		return "struct"
	case Class:
		return "class"
	case StaticArray:
		return "static-array"
	case DynamicArray:
		return "dynamic-array"
	case ArrayRef:
		return "array-ref"
	case StrongPtr:
		return "strong-ptr"
	case WeakPtr:
		return "weak-ptr"
	case RawPtr:
		return "raw-ptr"
	case FuncPtr:
		return "func-ptr"
	case Delegate:
		return "delegate"
	default:
		return "kind(?)"
	}
}

// IsInteger reports whether k is one of the integer numeric kinds,
// including the small-integer promotion sources ADL fitness
// promotes to int.
func (k Kind) IsInteger() bool {
	switch k {
	case Bool, SByte, Byte, Short, UShort, Char, Int, UInt, Long, ULong:
		return true
	}
	return false
}

// IsFloat reports whether k is a floating-point kind.
func (k Kind) IsFloat() bool { return k == Float || k == Double }

// IsNumeric reports whether k participates in arithmetic constant folding.
func (k Kind) IsNumeric() bool { return k.IsInteger() || k.IsFloat() }

// PromotesToInt reports the small-integer promotion set ADL's
// fitness rule uses (bool/byte/sbyte/short/ushort -> int).
func (k Kind) PromotesToInt() bool {
	switch k {
	case Bool, Byte, SByte, Short, UShort:
		return true
	}
	return false
}

// IsPointer reports whether k is one of the strong/weak/raw pointer kinds.
func (k Kind) IsPointer() bool {
	return k == StrongPtr || k == WeakPtr || k == RawPtr
}

// IsArray reports whether k is one of the array-family kinds.
func (k Kind) IsArray() bool {
	return k == StaticArray || k == DynamicArray || k == ArrayRef
}

// IsComposite reports whether k carries a member list (struct or class).
func (k Kind) IsComposite() bool { return k == Struct || k == Class }
