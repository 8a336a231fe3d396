package rig

import "context"

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport,Dialer

// Close codes
const (
	CloseNormal    int32 = 1000
	CloseGoingAway int32 = 1001
	CloseInternal  int32 = 1011
)

// Transport はリグとの1本の双方向フレーム接続です。
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int32, reason string) error
}

// Dialer はリグへの接続を確立します。
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc は関数をDialerとして扱うアダプタです。
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }
