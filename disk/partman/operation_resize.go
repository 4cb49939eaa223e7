package partman

// OperationResizeImpl 调整分区大小.
// 相邻空闲空间的重新计算尚未实现, 因此投影不产生任何效果;
// 尺寸重分配逻辑应在 ApplyToVisual 内补充, 调用方无需改动.
type OperationResizeImpl struct {
	operation
}

func NewOperationResize(orig, proposed Partition) *OperationResizeImpl {
	return &OperationResizeImpl{operation{type_: OperationResize, orig: orig, proposed: proposed}}
}

func (o *OperationResizeImpl) ApplyToVisual(partitions PartitionList) PartitionList {
	return partitions
}
