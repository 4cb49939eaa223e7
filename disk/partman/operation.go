package partman

import (
	"fmt"

	"github.com/pkg/errors"
)

// OperationType 操作类型.
type OperationType int

const (
	OperationCreate OperationType = iota
	OperationDelete
	OperationFormat
	OperationResize
	OperationMountPoint
)

var operationTypeNames = []string{"create", "delete", "format", "resize", "mount-point"}

func (t OperationType) String() string {
	if t < 0 || int(t) >= len(operationTypeNames) {
		return "invalid"
	}
	return operationTypeNames[t]
}

func ParseOperationType(s string) (OperationType, error) {
	for i, name := range operationTypeNames {
		if name == s {
			return OperationType(i), nil
		}
	}
	return 0, errors.Errorf("unknown operation type %q", s)
}

// Operation 一次用户请求的分区变更记录, 创建后不可修改.
type Operation interface {
	Type() OperationType

	// Original 变更前的分区快照.
	Original() Partition

	// Proposed 变更后的分区快照.
	Proposed() Partition

	// ApplyToVisual 将变更投影到某一设备的分区序列上, 返回投影后的序列.
	// partitions 归调用方所有, 实现可原地修改它.
	// 只有与 Original 区域相同的分区会被修改.
	ApplyToVisual(partitions PartitionList) PartitionList

	String() string
}

// NewOperation 依据类型构造对应的操作.
func NewOperation(t OperationType, orig, proposed Partition) (Operation, error) {
	switch t {
	case OperationCreate:
		return NewOperationCreate(orig, proposed), nil
	case OperationDelete:
		return NewOperationDelete(orig, proposed), nil
	case OperationFormat:
		return NewOperationFormat(orig, proposed), nil
	case OperationResize:
		return NewOperationResize(orig, proposed), nil
	case OperationMountPoint:
		return NewOperationMountPoint(orig, proposed), nil
	default:
		return nil, errors.Errorf("unsupported operation type %d", t)
	}
}

type operation struct {
	type_    OperationType
	orig     Partition
	proposed Partition
}

func (o *operation) Type() OperationType {
	return o.type_
}

func (o *operation) Original() Partition {
	return o.orig
}

func (o *operation) Proposed() Partition {
	return o.proposed
}

func (o *operation) String() string {
	return fmt.Sprintf("<%s %s -> %s>", o.type_, o.orig, o.proposed)
}

// update 对与原始快照区域相同的分区执行 fn.
func (o *operation) update(partitions PartitionList, fn func(p *Partition)) PartitionList {
	if i := partitions.IndexOfRegion(o.orig); i >= 0 {
		fn(&partitions[i])
	}
	return partitions
}
