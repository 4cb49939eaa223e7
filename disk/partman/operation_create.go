package partman

// OperationCreateImpl 在未分配空间上新建分区.
type OperationCreateImpl struct {
	operation
}

func NewOperationCreate(orig, proposed Partition) *OperationCreateImpl {
	return &OperationCreateImpl{operation{type_: OperationCreate, orig: orig, proposed: proposed}}
}

// ApplyToVisual 以新分区整体替换原始区域.
func (o *OperationCreateImpl) ApplyToVisual(partitions PartitionList) PartitionList {
	return o.update(partitions, func(p *Partition) {
		*p = o.proposed
	})
}
