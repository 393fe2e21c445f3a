package scope

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client allows to connect to a scope server and receive frames.
type Client struct {
	address string

	conn *grpc.ClientConn
}

// NewClient creates a new client for the given address.
func NewClient(address string) *Client {
	return &Client{
		address: address,
	}
}

// Open the connection to the scope server.
func (c *Client) Open() error {
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot connect to scope server: %v", err)
	}
	c.conn = conn

	return nil
}

// Close the connection to the scope server.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Forward receives frames from the scope server and hands them to the given display until the
// context is done or the server closes the stream.
func (c *Client) Forward(ctx context.Context, display Display) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	stream, err := c.conn.NewStream(ctx, &scopeServiceDesc.Streams[0], getFramesMethod)
	if err != nil {
		return fmt.Errorf("cannot open frame stream: %v", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("cannot request frames: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("cannot request frames: %v", err)
	}

	for {
		rawFrame := new(structpb.Struct)
		err := stream.RecvMsg(rawFrame)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cannot receive frame: %w", err)
		}

		frame, err := decodeFrame(rawFrame)
		if err != nil {
			return err
		}
		switch f := frame.(type) {
		case *TimeFrame:
			display.ShowTimeFrame(f)
		case *SpectralFrame:
			display.ShowSpectralFrame(f)
		case *WaterfallFrame:
			display.ShowWaterfallFrame(f)
		}
	}
}
