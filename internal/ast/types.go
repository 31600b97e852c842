package ast

import "strings"

// InferName is the reserved type name for "no annotation written".
const InferName = "_Infer"

type TypeKind int

const (
	TCustom TypeKind = iota
	TMulti
	TFunction
	TType
)

type FunctionType int

const (
	FTFunc FunctionType = iota
	FTFuncExt
	FTProc
	FTProcExt
	FTMacro
)

func (f FunctionType) String() string {
	switch f {
	case FTFunc:
		return "func"
	case FTFuncExt:
		return "ext_func"
	case FTProc:
		return "proc"
	case FTProcExt:
		return "ext_proc"
	case FTMacro:
		return "macro"
	}
	return "?"
}

// IsExt reports whether the body lives in the external runtime.
func (f FunctionType) IsExt() bool { return f == FTFuncExt || f == FTProcExt }

// IsProc reports whether the function is effectful.
func (f FunctionType) IsProc() bool { return f == FTProc || f == FTProcExt }

// Base folds the external variants onto func/proc.
func (f FunctionType) Base() FunctionType {
	switch f {
	case FTFuncExt:
		return FTFunc
	case FTProcExt:
		return FTProc
	}
	return f
}

type TTypeDef int

const (
	TStructDef TTypeDef = iota
	TEnumDef
	TFuncSig
)

// ValueType is the static type of a binding or expression.
type ValueType struct {
	Kind TypeKind
	// Name is the type name for TCustom and the element type for TMulti.
	Name string
	Func FunctionType
	Def  TTypeDef
}

var (
	Infer   = Custom(InferName)
	I64     = Custom("I64")
	U8      = Custom("U8")
	Bool    = Custom("Bool")
	Str     = Custom("Str")
	Dynamic = Custom("Dynamic")
	TypeT   = Custom("Type")
	// Void is the type of calls to functions without return values.
	Void = ValueType{}
)

func Custom(name string) ValueType { return ValueType{Kind: TCustom, Name: name} }

func Multi(elem string) ValueType { return ValueType{Kind: TMulti, Name: elem} }

func Function(f FunctionType) ValueType { return ValueType{Kind: TFunction, Func: f} }

func TypeOfDef(d TTypeDef) ValueType { return ValueType{Kind: TType, Def: d} }

func (t ValueType) IsInfer() bool { return t.Kind == TCustom && t.Name == InferName }

func (t ValueType) IsVoid() bool { return t.Kind == TCustom && t.Name == "" }

func (t ValueType) IsCustom(name string) bool { return t.Kind == TCustom && t.Name == name }

func (t ValueType) String() string {
	switch t.Kind {
	case TCustom:
		if t.Name == "" {
			return "Void"
		}
		return t.Name
	case TMulti:
		return ".." + t.Name
	case TFunction:
		return t.Func.String()
	case TType:
		switch t.Def {
		case TStructDef:
			return "struct"
		case TEnumDef:
			return "enum"
		case TFuncSig:
			return "FunctionSig"
		}
	}
	return "?"
}

// ParseTypeName maps a written type name to its ValueType.
func ParseTypeName(s string) ValueType {
	switch s {
	case "func":
		return Function(FTFunc)
	case "ext_func":
		return Function(FTFuncExt)
	case "proc":
		return Function(FTProc)
	case "ext_proc":
		return Function(FTProcExt)
	case "macro":
		return Function(FTMacro)
	case "struct":
		return TypeOfDef(TStructDef)
	case "enum":
		return TypeOfDef(TEnumDef)
	case "FunctionSig":
		return TypeOfDef(TFuncSig)
	}
	if strings.HasPrefix(s, "..") {
		return Multi(s[2:])
	}
	return Custom(s)
}

// PrimitiveNames are the types the C runtime defines as plain typedefs.
var PrimitiveNames = []string{"U8", "I64", "Bool", "Dynamic", "Type"}

func IsPrimitive(name string) bool {
	for _, p := range PrimitiveNames {
		if p == name {
			return true
		}
	}
	return false
}

// IsCopyExempt reports whether copy parameters accept the type without clone().
func IsCopyExempt(name string) bool { return IsPrimitive(name) || name == "Str" }

// IsIntegral reports whether range patterns apply to the type.
func IsIntegral(name string) bool { return name == "I64" || name == "U8" }
