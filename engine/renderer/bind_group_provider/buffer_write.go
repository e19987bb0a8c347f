package bind_group_provider

// BufferWrite describes a queued upload into the buffer stored at a slot of a BindGroupProvider.
type BufferWrite struct {
	Provider BindGroupProvider
	Slot     int
	Offset   uint64
	Data     []byte
}
