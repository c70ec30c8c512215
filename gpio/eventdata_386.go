package gpio

// struct gpioevent_data, i386 packs it without tail padding
type gpioeventData struct {
	timestamp uint64
	id        uint32
}
