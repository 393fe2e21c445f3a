package scope

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultOutBufferSize = 10

const (
	scopeServiceName = "replayscope.Scope"
	getFramesMethod  = "/" + scopeServiceName + "/GetFrames"
)

// The scope service has a single server streaming method. The frames are transported as
// generic protobuf structs, see frames.go for the layout.
var scopeServiceDesc = grpc.ServiceDesc{
	ServiceName: scopeServiceName,
	HandlerType: (*frameService)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetFrames",
			Handler:       getFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "replayscope/scope",
}

type frameService interface {
	GetFrames(*emptypb.Empty, grpc.ServerStream) error
}

func getFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(frameService).GetFrames(request, stream)
}

type grpcServer struct {
	address *net.TCPAddr

	lock     *sync.Mutex
	listener net.Listener
	server   *grpc.Server

	outBufferSize int
	in            chan *structpb.Struct
	register      chan chan *structpb.Struct
	out           []chan *structpb.Struct
	shutdown      chan struct{}
	shutdownOnce  *sync.Once
}

func newGRPCServer(address string, outBufferSize int) (*grpcServer, error) {
	result := &grpcServer{
		lock:          &sync.Mutex{},
		outBufferSize: outBufferSize,
		in:            make(chan *structpb.Struct),
		register:      make(chan chan *structpb.Struct),
		shutdown:      make(chan struct{}),
		shutdownOnce:  &sync.Once{},
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve address %s: %w", address, err)
	}
	result.address = localAddress

	return result, nil
}

func (s *grpcServer) run() {
	for {
		select {
		case <-s.shutdown:
			for _, out := range s.out {
				close(out)
			}
			s.out = nil
			return
		case out := <-s.register:
			s.addStream(out)
		case frame := <-s.in:
			s.sendFrameToStreams(frame)
		}
	}
}

func (s *grpcServer) addStream(out chan *structpb.Struct) {
	s.out = append(s.out, out)
}

func (s *grpcServer) removeStream(i int) {
	if len(s.out) == 1 {
		s.out = nil
		return
	}
	s.out[i] = s.out[len(s.out)-1]
	s.out = s.out[:len(s.out)-1]
}

func (s *grpcServer) sendFrameToStreams(frame *structpb.Struct) {
	for i := len(s.out) - 1; i >= 0; i-- {
		out := s.out[i]
		select {
		case out <- frame:
		default:
			close(out)
			s.removeStream(i)
		}
	}
}

// getFrameStream registers a new outgoing frame stream. The stream is closed when the server shuts down
// or when the receiver cannot keep up.
func (s *grpcServer) getFrameStream() chan *structpb.Struct {
	result := make(chan *structpb.Struct, s.outBufferSize)
	select {
	case s.register <- result:
	case <-s.shutdown:
		close(result)
	}
	return result
}

// Start listens on the configured address and serves until Stop is called.
func (s *grpcServer) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	return s.serve()
}

func (s *grpcServer) listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.server != nil {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address.String())
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	s.listener = listener
	s.server = grpc.NewServer()
	s.server.RegisterService(&scopeServiceDesc, s)

	return nil
}

func (s *grpcServer) serve() error {
	s.lock.Lock()
	server := s.server
	listener := s.listener
	s.lock.Unlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}

	go s.run()
	err := server.Serve(listener)
	s.shutdownOnce.Do(func() { close(s.shutdown) })

	s.lock.Lock()
	s.server = nil
	s.listener = nil
	s.lock.Unlock()
	return err
}

func (s *grpcServer) Stop() {
	s.lock.Lock()
	server := s.server
	s.lock.Unlock()
	if server == nil {
		return
	}
	server.Stop()
}

// Addr returns the address the server is actually listening on, or nil if it is not listening.
func (s *grpcServer) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *grpcServer) GetFrames(_ *emptypb.Empty, stream grpc.ServerStream) error {
	frames := s.getFrameStream()
	for {
		select {
		case frame, open := <-frames:
			if !open {
				return nil
			}
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *grpcServer) SendFrame(frame *structpb.Struct) {
	select {
	case s.in <- frame:
	case <-s.shutdown:
	}
}
