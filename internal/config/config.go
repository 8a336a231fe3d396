package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Cell は "x,y" 形式で書かれた盤面座標です。
type Cell struct {
	X int
	Y int
}

func (c *Cell) UnmarshalText(b []byte) error {
	xs, ys, ok := strings.Cut(string(b), ",")
	if !ok {
		return fmt.Errorf("cell %q: want x,y", b)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return fmt.Errorf("cell %q: %w", b, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return fmt.Errorf("cell %q: %w", b, err)
	}
	*c = Cell{X: x, Y: y}
	return nil
}

func (c Cell) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Game は新規ゲームの盤面構成です。
type Game struct {
	Width        int      `env:"WIDTH" envDefault:"8"`
	Height       int      `env:"HEIGHT" envDefault:"8"`
	Players      []string `env:"PLAYERS" envDefault:"p1,p2" envSeparator:","`
	Aidron       Cell     `env:"AIDRON" envDefault:"5,2"`
	Exit         Cell     `env:"EXIT" envDefault:"7,7"`
	MemorySparks []Cell   `env:"MEMORY_SPARKS" envDefault:"2,5;6,1" envSeparator:";"`
	Filers       []Cell   `env:"FILERS" envDefault:"0,7" envSeparator:";"`
	// 0なら起動ごとに乱数で決めます
	Seed uint64 `env:"SEED" envDefault:"0"`
}

// Rig はLEDリグとのブリッジ設定です。URLが空ならブリッジを起動しません。
type Rig struct {
	URL               string        `env:"URL"`
	Serpentine        bool          `env:"SERPENTINE" envDefault:"true"`
	FlushInterval     time.Duration `env:"FLUSH_INTERVAL" envDefault:"33ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"5s"`
	RateLimit         int           `env:"RATE_LIMIT" envDefault:"100"`
	QueueCapacity     int           `env:"QUEUE_CAPACITY" envDefault:"256"`
	AckTimeout        time.Duration `env:"ACK_TIMEOUT" envDefault:"2s"`
	BackoffMax        time.Duration `env:"BACKOFF_MAX" envDefault:"30s"`
}

type Telemetry struct {
	// Endpoint はトレースのOTLP/HTTP送信先URLです。
	Endpoint        string        `env:"ENDPOINT"`
	MetricsEndpoint string        `env:"METRICS_ENDPOINT"`
	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`
	// LogsEndpoint はOTLP/gRPCのURLです。空ならslogはローカル出力のみです。
	LogsEndpoint string `env:"LOGS_ENDPOINT"`
	Enabled      bool   `env:"ENABLED" envDefault:"true"`
}

// Umbra は cmd/umbra の設定です。
type Umbra struct {
	HTTPAddr       string        `env:"UMBRA_HTTP_ADDR" envDefault:":8080"`
	LogLevel       slog.Level    `env:"UMBRA_LOG_LEVEL" envDefault:"INFO"`
	CanonPath      string        `env:"UMBRA_CANON_PATH"`
	DBPath         string        `env:"UMBRA_DB_PATH"`
	SessionID      string        `env:"UMBRA_SESSION_ID"`
	Tick           time.Duration `env:"UMBRA_TICK" envDefault:"20ms"`
	VerifyInterval time.Duration `env:"UMBRA_VERIFY_INTERVAL" envDefault:"30s"`

	Game      Game      `envPrefix:"UMBRA_GAME_"`
	Rig       Rig       `envPrefix:"UMBRA_RIG_"`
	Telemetry Telemetry `envPrefix:"UMBRA_OTEL_"`
}

// RigSim は cmd/rigsim の設定です。
type RigSim struct {
	Addr       string     `env:"RIGSIM_ADDR" envDefault:":9090"`
	LogLevel   slog.Level `env:"RIGSIM_LOG_LEVEL" envDefault:"INFO"`
	Width      int        `env:"RIGSIM_WIDTH" envDefault:"8"`
	Height     int        `env:"RIGSIM_HEIGHT" envDefault:"8"`
	Serpentine bool       `env:"RIGSIM_SERPENTINE" envDefault:"true"`
	FailFirst  int        `env:"RIGSIM_FAIL_FIRST" envDefault:"0"`
}

// LoadUmbra は環境変数から Umbra を読み込み、値の範囲を検証します。
func LoadUmbra() (Umbra, error) {
	var cfg Umbra
	if err := ParseEnv(&cfg); err != nil {
		return Umbra{}, err
	}
	if cfg.Tick <= 0 {
		return Umbra{}, fmt.Errorf("UMBRA_TICK must be positive, got %s", cfg.Tick)
	}
	if cfg.VerifyInterval <= 0 {
		return Umbra{}, fmt.Errorf("UMBRA_VERIFY_INTERVAL must be positive, got %s", cfg.VerifyInterval)
	}
	if cfg.Game.Width < 3 || cfg.Game.Height < 3 {
		return Umbra{}, fmt.Errorf("board %dx%d is too small", cfg.Game.Width, cfg.Game.Height)
	}
	if len(cfg.Game.Players) == 0 {
		return Umbra{}, fmt.Errorf("UMBRA_GAME_PLAYERS is empty")
	}
	if cfg.Rig.RateLimit <= 0 {
		return Umbra{}, fmt.Errorf("UMBRA_RIG_RATE_LIMIT must be positive, got %d", cfg.Rig.RateLimit)
	}
	return cfg, nil
}

// LoadRigSim は環境変数から RigSim を読み込みます。
func LoadRigSim() (RigSim, error) {
	var cfg RigSim
	if err := ParseEnv(&cfg); err != nil {
		return RigSim{}, err
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return RigSim{}, fmt.Errorf("rig %dx%d is empty", cfg.Width, cfg.Height)
	}
	return cfg, nil
}
