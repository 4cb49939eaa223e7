package partman

// OperationDeleteImpl 删除分区, 使其区域变为未分配空间.
type OperationDeleteImpl struct {
	operation
}

func NewOperationDelete(orig, proposed Partition) *OperationDeleteImpl {
	return &OperationDeleteImpl{operation{type_: OperationDelete, orig: orig, proposed: proposed}}
}

func (o *OperationDeleteImpl) ApplyToVisual(partitions PartitionList) PartitionList {
	return o.update(partitions, func(p *Partition) {
		*p = o.proposed
	})
}
