package llvm

import (
	"fmt"
	"strings"

	"kestrel/internal/ir"
)

func (fe *funcEmitter) emitInstr(in *ir.Instr) error {
	line, err := formatInstr(in)
	if err != nil {
		return err
	}
	fe.emitter.buf.WriteString("  ")
	fe.emitter.buf.WriteString(line)
	fe.emitter.buf.WriteString("\n")
	return nil
}

// formatInstr renders one instruction without indentation.
func formatInstr(in *ir.Instr) (string, error) {
	switch in.Op {
	case ir.OpAlloca:
		if in.Align > 0 {
			return fmt.Sprintf("%%%s = alloca %s, align %d", in.Name, in.Elem, in.Align), nil
		}
		return fmt.Sprintf("%%%s = alloca %s", in.Name, in.Elem), nil
	case ir.OpLoad:
		return fmt.Sprintf("%%%s = load %s, %s", in.Name, in.Typ, ir.Operand(in.Operands[0])), nil
	case ir.OpStore:
		return fmt.Sprintf("store %s, %s", ir.Operand(in.Operands[0]), ir.Operand(in.Operands[1])), nil
	case ir.OpGEP:
		return fmt.Sprintf("%%%s = getelementptr inbounds %s, %s", in.Name, in.Elem, operandList(in.Operands)), nil
	case ir.OpBinary:
		flag := ""
		if in.NSW {
			flag = " nsw"
		}
		return fmt.Sprintf("%%%s = %s%s %s, %s", in.Name, in.Bin, flag, ir.Operand(in.Operands[0]), in.Operands[1].Ident()), nil
	case ir.OpICmp:
		return fmt.Sprintf("%%%s = icmp %s %s, %s", in.Name, in.Pred, ir.Operand(in.Operands[0]), in.Operands[1].Ident()), nil
	case ir.OpCast:
		return fmt.Sprintf("%%%s = %s %s to %s", in.Name, in.Cast, ir.Operand(in.Operands[0]), in.Typ), nil
	case ir.OpCall:
		call := fmt.Sprintf("call %s %s(%s)%s", in.Sig.Ret, in.Callee().Ident(), operandList(in.Args()), attrSuffix(in.Attrs))
		if in.Sig.Ret.IsVoid() {
			return call, nil
		}
		return fmt.Sprintf("%%%s = %s", in.Name, call), nil
	case ir.OpExtractValue:
		return fmt.Sprintf("%%%s = extractvalue %s, %s", in.Name, ir.Operand(in.Operands[0]), indexList(in.Index)), nil
	case ir.OpInsertValue:
		return fmt.Sprintf("%%%s = insertvalue %s, %s, %s", in.Name, ir.Operand(in.Operands[0]), ir.Operand(in.Operands[1]), indexList(in.Index)), nil
	case ir.OpBr:
		return fmt.Sprintf("br label %%%s", in.Targets[0].Name), nil
	case ir.OpCondBr:
		return fmt.Sprintf("br %s, label %%%s, label %%%s", ir.Operand(in.Operands[0]), in.Targets[0].Name, in.Targets[1].Name), nil
	case ir.OpRet:
		if len(in.Operands) == 0 {
			return "ret void", nil
		}
		return "ret " + ir.Operand(in.Operands[0]), nil
	case ir.OpUnreachable:
		return "unreachable", nil
	default:
		return "", fmt.Errorf("unsupported instruction %s", in.Op)
	}
}

func operandList(vals []ir.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = ir.Operand(v)
	}
	return strings.Join(parts, ", ")
}

func indexList(index []int) string {
	parts := make([]string, len(index))
	for i, idx := range index {
		parts[i] = fmt.Sprint(idx)
	}
	return strings.Join(parts, ", ")
}
