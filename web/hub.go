package web

const defaultOutBufferSize = 16

// hub fans out the encoded messages to all connected pages. Pages that cannot keep up are dropped.
type hub struct {
	outBufferSize int
	in            chan []byte
	register      chan chan []byte
	unregister    chan chan []byte
	out           []chan []byte
	shutdown      chan struct{}
	done          chan struct{}
}

func newHub(outBufferSize int) *hub {
	return &hub{
		outBufferSize: outBufferSize,
		in:            make(chan []byte),
		register:      make(chan chan []byte),
		unregister:    make(chan chan []byte),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (h *hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.shutdown:
			for _, out := range h.out {
				close(out)
			}
			h.out = nil
			return
		case out := <-h.register:
			h.out = append(h.out, out)
		case out := <-h.unregister:
			h.removeStream(out)
		case message := <-h.in:
			h.sendToStreams(message)
		}
	}
}

func (h *hub) removeStream(out chan []byte) {
	for i, o := range h.out {
		if o != out {
			continue
		}
		close(o)
		h.out[i] = h.out[len(h.out)-1]
		h.out = h.out[:len(h.out)-1]
		return
	}
}

func (h *hub) sendToStreams(message []byte) {
	for i := len(h.out) - 1; i >= 0; i-- {
		out := h.out[i]
		select {
		case out <- message:
		default:
			h.removeStream(out)
		}
	}
}

// stream registers a new outgoing message stream. The stream is closed when the page is dropped or the
// hub shuts down.
func (h *hub) stream() chan []byte {
	result := make(chan []byte, h.outBufferSize)
	select {
	case h.register <- result:
	case <-h.shutdown:
		close(result)
	}
	return result
}

func (h *hub) release(out chan []byte) {
	select {
	case h.unregister <- out:
	case <-h.shutdown:
	}
}

func (h *hub) send(message []byte) {
	select {
	case h.in <- message:
	case <-h.shutdown:
	}
}

func (h *hub) stop() {
	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	<-h.done
}
