package partman

// OperationFormatImpl 原地更换文件系统与挂载点.
type OperationFormatImpl struct {
	operation
}

func NewOperationFormat(orig, proposed Partition) *OperationFormatImpl {
	return &OperationFormatImpl{operation{type_: OperationFormat, orig: orig, proposed: proposed}}
}

func (o *OperationFormatImpl) ApplyToVisual(partitions PartitionList) PartitionList {
	return o.update(partitions, func(p *Partition) {
		p.Fs = o.proposed.Fs
		p.MountPoint = o.proposed.MountPoint
		p.Status = StatusFormatted
	})
}
