package scope

// Mailbox is a single-slot channel where the latest value wins. Put never blocks.
// A mailbox supports one producer and one consumer.
type Mailbox[T any] struct {
	slot chan T
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		slot: make(chan T, 1),
	}
}

// Put a value into the mailbox, replacing a value that was not taken yet.
func (m *Mailbox[T]) Put(value T) {
	for {
		select {
		case m.slot <- value:
			return
		default:
			select {
			case <-m.slot:
			default:
			}
		}
	}
}

// Take the value out of the mailbox, if there is one.
func (m *Mailbox[T]) Take() (T, bool) {
	select {
	case value := <-m.slot:
		return value, true
	default:
		var zero T
		return zero, false
	}
}
