package partman

// OperationMountPointImpl 仅修改挂载点, 分区状态保持不变.
type OperationMountPointImpl struct {
	operation
}

func NewOperationMountPoint(orig, proposed Partition) *OperationMountPointImpl {
	return &OperationMountPointImpl{operation{type_: OperationMountPoint, orig: orig, proposed: proposed}}
}

func (o *OperationMountPointImpl) ApplyToVisual(partitions PartitionList) PartitionList {
	return o.update(partitions, func(p *Partition) {
		p.MountPoint = o.proposed.MountPoint
	})
}
