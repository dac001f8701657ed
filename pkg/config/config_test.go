package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/algoqa/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[client]
base_url = "https://qa.example.com/api"
token = "secret"
timeout = "5s"
top_k = 8

[decoder]
unrecognized = "report"
read_buffer = 512

[proxy]
listen = ":9999"
upstream = "https://qa.example.com"

[storage]
driver = "postgres"
sqlite_path = "/tmp/algoqa.db"
postgres_dsn = "postgres://localhost/algoqa"

[eventstream]
provider = "kafka"
brokers = "k1:9092,k2:9092"
topic = "answers"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.BaseURL).To(Equal("https://qa.example.com/api"))
			Expect(cfg.Client.Token).To(Equal("secret"))
			Expect(cfg.Client.Timeout).To(Equal("5s"))
			Expect(cfg.Client.TopK).To(Equal(uint(8)))
			Expect(cfg.Decoder.Unrecognized).To(Equal("report"))
			Expect(cfg.Decoder.ReadBuffer).To(Equal(uint(512)))
			Expect(cfg.Proxy.Listen).To(Equal(":9999"))
			Expect(cfg.Proxy.Upstream).To(Equal("https://qa.example.com"))
			Expect(cfg.Storage.Driver).To(Equal("postgres"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/algoqa.db"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/algoqa"))
			Expect(cfg.EventStream.Provider).To(Equal("kafka"))
			Expect(cfg.EventStream.BrokerList()).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.EventStream.Topic).To(Equal("answers"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[proxy]
upstream = "https://qa.example.com"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Proxy.Upstream).To(Equal("https://qa.example.com"))
			Expect(cfg.Proxy.Listen).To(Equal(defaults.Proxy.Listen))
			Expect(cfg.Client).To(Equal(defaults.Client))
			Expect(cfg.Decoder).To(Equal(defaults.Decoder))
			Expect(cfg.Storage).To(Equal(defaults.Storage))
			Expect(cfg.EventStream).To(Equal(defaults.EventStream))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("[client\nbase_url = ")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 99"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Client.BaseURL = "https://qa.example.com/api"
			cfg.Storage.Driver = config.StorageMemory
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("client.token", "abc")).To(Succeed())

			value, err := c.GetConfigValue("client.token")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("abc"))
		})

		It("sets a uint config key", func() {
			Expect(c.SetConfigValue("client.top_k", "10")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.TopK).To(Equal(uint(10)))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "https://qa.example.com")).To(Succeed())
			Expect(c.SetConfigValue("eventstream.brokers", "localhost:9092")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Proxy.Upstream).To(Equal("https://qa.example.com"))
			Expect(cfg.EventStream.Brokers).To(Equal("localhost:9092"))
		})

		DescribeTable("rejects invalid values",
			func(key, value, msg string) {
				err := c.SetConfigValue(key, value)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(msg))
			},
			Entry("unknown key", "proxy.provider", "x", "unknown config key"),
			Entry("non-numeric uint", "client.top_k", "lots", "invalid value for client.top_k"),
			Entry("bad duration", "client.timeout", "soon", "invalid value for client.timeout"),
			Entry("unknown policy", "decoder.unrecognized", "keep", "unknown unrecognized-payload policy"),
			Entry("unknown storage driver", "storage.driver", "mysql", "invalid value for storage.driver"),
			Entry("unknown provider", "eventstream.provider", "nats", "invalid value for eventstream.provider"),
		)
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("proxy.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(":8081"))

			value, err = c.GetConfigValue("client.top_k")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("4"))

			value, err = c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(":8082"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nope")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		Expect(config.ValidConfigKeys()).To(Equal([]string{
			"client.base_url",
			"client.token",
			"client.timeout",
			"client.top_k",
			"decoder.unrecognized",
			"decoder.read_buffer",
			"proxy.listen",
			"proxy.upstream",
			"api.listen",
			"storage.driver",
			"storage.sqlite_path",
			"storage.postgres_dsn",
			"eventstream.provider",
			"eventstream.brokers",
			"eventstream.topic",
		}))
	})

	It("agrees with IsValidConfigKey", func() {
		for _, k := range config.ValidConfigKeys() {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
		Expect(config.IsValidConfigKey("api.upstream")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns a sqlite local preset", func() {
		cfg, err := config.PresetConfig("local")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal(config.StorageSQLite))
		Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamNop))
	})

	It("returns a kafka preset backed by postgres", func() {
		cfg, err := config.PresetConfig("KAFKA")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal(config.StoragePostgres))
		Expect(cfg.EventStream.Provider).To(Equal(config.EventStreamKafka))
		Expect(cfg.EventStream.BrokerList()).To(Equal([]string{"localhost:9092"}))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("cloud")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists every preset", func() {
		for _, name := range config.ValidPresetNames() {
			_, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
		}
	})
})

var _ = Describe("ClientConfig.TimeoutDuration", func() {
	It("parses Go durations", func() {
		d, err := config.ClientConfig{Timeout: "1m30s"}.TimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(90 * time.Second))
	})

	It("treats empty as no timeout", func() {
		d, err := config.ClientConfig{}.TimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeZero())
	})

	It("rejects garbage", func() {
		_, err := config.ClientConfig{Timeout: "later"}.TimeoutDuration()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("EventStreamConfig.BrokerList", func() {
	It("trims and drops empty entries", func() {
		e := config.EventStreamConfig{Brokers: " a:1, ,b:2,"}
		Expect(e.BrokerList()).To(Equal([]string{"a:1", "b:2"}))
	})

	It("returns nil for no brokers", func() {
		Expect(config.EventStreamConfig{}.BrokerList()).To(BeNil())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[storage]
driver = "memory"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.driver")).To(Equal("memory"))
		Expect(v.GetString("proxy.listen")).To(Equal(":8081"))
		Expect(config.FromViper(v).API.Listen).To(Equal(":8082"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[client]
token = "from-file"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		GinkgoT().Setenv("ALGOQA_CLIENT_TOKEN", "from-env")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Client.Token).To(Equal("from-env"))
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagProxyListen})

		Expect(v.GetString("proxy.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[proxy]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagProxyListen})

		Expect(v.GetString("proxy.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("proxy.listen")).To(Equal(":8081"))
	})

	It("AddStringFlag pulls name, shorthand, and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var upstream string
		config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &upstream)

		f := cmd.Flags().Lookup("upstream")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("u"))
		Expect(f.Usage).To(Equal("Upstream QA backend URL"))
		Expect(f.DefValue).To(Equal("http://localhost:8080"))
	})

	It("AddUintFlag defaults top-k", func() {
		cmd := &cobra.Command{Use: "test"}
		var topK uint
		config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &topK)

		f := cmd.Flags().Lookup("top-k")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("k"))
		Expect(topK).To(Equal(uint(4)))
	})
})

var _ = Describe("Resolve", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String(config.ConfigDirFlag, "", "")
		Expect(cmd.Flags().Set(config.ConfigDirFlag, tmpDir)).To(Succeed())
		return cmd
	}

	It("layers flags over config and fills the database path", func() {
		data := `[storage]
driver = "memory"

[proxy]
upstream = "http://backend:8080"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		cmd := newCmd()
		var upstream string
		config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &upstream)
		Expect(cmd.Flags().Set("upstream", "http://override:9000")).To(Succeed())

		cfg, err := config.Resolve(cmd, config.Flags, []string{config.FlagUpstream})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Proxy.Upstream).To(Equal("http://override:9000"))
		Expect(cfg.Storage.Driver).To(Equal("memory"))
		Expect(cfg.Storage.SQLitePath).To(Equal(filepath.Join(tmpDir, "algoqa.db")))
	})

	It("keeps an explicit database path", func() {
		cmd := newCmd()
		var path string
		config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &path)
		Expect(cmd.Flags().Set("sqlite", "/data/qa.db")).To(Succeed())

		cfg, err := config.Resolve(cmd, config.Flags, []string{config.FlagSQLite})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.SQLitePath).To(Equal("/data/qa.db"))
	})
})
