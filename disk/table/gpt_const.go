package table

const (
	GPTHeaderSize             = 512
	GPTMinPartEntrySize       = 128
	GPTMaxPartitionEntryCount = 1024
)

const GPTSignature = "EFI PART"

type GPTPartitionType = string

// http://en.wikipedia.org/wiki/GUID_Partition_Table#Partition_type_GUIDs
const (
	BlankEmptyPart      GPTPartitionType = "00000000-0000-0000-0000-000000000000"
	GEFISystemPartition GPTPartitionType = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	BIOSBootPartition   GPTPartitionType = "21686148-6449-6E6F-744E-656564454649"
	MicroMSR            GPTPartitionType = "E3C9E316-0B5C-4DB8-817D-F92DF00215AE"
	BasicDataPartition  GPTPartitionType = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
	LinuxFSData         GPTPartitionType = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	SwapPartition       GPTPartitionType = "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"
	LVMPartition        GPTPartitionType = "E6D6D379-F507-44C2-A23C-238F2A3DF928"
)
