package connutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultAddr       = "USB0::0x6656::0x0834::1485061822::INSTR"
	DefaultCaptureDir = "pics"
	DefaultDebug      = -1
	DefaultBaud       = 115200
	DefaultGPIB       = 1
	DefaultTimeout    = 5 * time.Second
	DefaultConvert    = "convert"
)

// Config holds everything needed to reach the generator.
type Config struct {
	Addr       string        // VISA resource string
	CaptureDir string        // screenshot directory
	Debug      int           // -3 fatal .. 1 debug
	Baud       int           // Prologix serial baud rate
	GPIB       int           // Prologix primary address when the resource has none
	Timeout    time.Duration // transport read timeout
	Convert    string        // image converter binary
}

// Load reads the configuration from UTG900_* environment variables, falling
// back to the given dotenv files (".env" when none are given) and then to
// the defaults. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}
	file := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range m {
			if _, ok := file[k]; !ok {
				file[k] = v
			}
		}
	}
	env := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	}

	cfg := Config{
		Addr:       getEnv(env, "UTG900_ADDR", DefaultAddr),
		CaptureDir: getEnv(env, "UTG900_CAPTURE_DIR", DefaultCaptureDir),
		Debug:      getEnvAsInt(env, "UTG900_DEBUG", DefaultDebug),
		Baud:       getEnvAsInt(env, "UTG900_BAUD", DefaultBaud),
		GPIB:       getEnvAsInt(env, "UTG900_GPIB", DefaultGPIB),
		Timeout:    DefaultTimeout,
		Convert:    getEnv(env, "UTG900_CONVERT", DefaultConvert),
	}
	if s := env("UTG900_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("UTG900_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

func getEnv(env func(string) string, key, def string) string {
	if v := env(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(env func(string) string, key string, def int) int {
	v, err := strconv.Atoi(env(key))
	if err != nil {
		return def
	}
	return v
}

// AddFlags registers flags overriding the loaded values; call it before
// flags.Parse.
func (c *Config) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Addr, "addr", c.Addr, "VISA address of the generator (USB, ASRL or TCPIP)")
	flags.StringVar(&c.CaptureDir, "captureDir", c.CaptureDir, "directory for screenshots")
	flags.IntVar(&c.Debug, "debug", c.Debug, "log level: -3 fatal, -2 error, -1 warning, 0 info, 1 debug")
	flags.IntVar(&c.Baud, "baud", c.Baud, "serial baud rate of a Prologix controller")
	flags.IntVar(&c.GPIB, "gpib", c.GPIB, "GPIB primary address behind a Prologix controller")
	flags.DurationVar(&c.Timeout, "timeout", c.Timeout, "transport read timeout")
	flags.StringVar(&c.Convert, "convert", c.Convert, "ImageMagick convert binary")
}

// Level maps the debug setting onto a logrus level.
func (c Config) Level() logrus.Level {
	switch {
	case c.Debug <= -3:
		return logrus.FatalLevel
	case c.Debug == -2:
		return logrus.ErrorLevel
	case c.Debug == -1:
		return logrus.WarnLevel
	case c.Debug == 0:
		return logrus.InfoLevel
	}
	return logrus.DebugLevel
}

// Logger returns a logger on stderr at the configured level.
func (c Config) Logger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(c.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logrus.NewEntry(logger)
}
