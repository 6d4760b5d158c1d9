package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds the runtime tunables that operators may change without a
// restart.
type Policy struct {
	Billing   BillingPolicy  `mapstructure:"billing"`
	Documents DocumentPolicy `mapstructure:"documents"`
}

type BillingPolicy struct {
	MaxConflictRetries int `mapstructure:"maxConflictRetries"`
}

type DocumentPolicy struct {
	MaxUploadBytes    int64         `mapstructure:"maxUploadBytes"`
	AllowedExtensions []string      `mapstructure:"allowedExtensions"`
	OrphanGracePeriod time.Duration `mapstructure:"orphanGracePeriod"`
	IntegrityInterval time.Duration `mapstructure:"integrityInterval"`
}

func DefaultPolicy() Policy {
	return Policy{
		Billing: BillingPolicy{
			MaxConflictRetries: 3,
		},
		Documents: DocumentPolicy{
			MaxUploadBytes:    10 * 1024 * 1024,
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".webp", ".pdf", ".doc", ".docx"},
			OrphanGracePeriod: time.Hour,
			IntegrityInterval: 6 * time.Hour,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(normalizePolicy(p))
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/schoolbill/config")
	v.AddConfigPath("/etc/schoolbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SCHOOLBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("billing.maxConflictRetries", defaults.Billing.MaxConflictRetries)
	v.SetDefault("documents.maxUploadBytes", defaults.Documents.MaxUploadBytes)
	v.SetDefault("documents.allowedExtensions", defaults.Documents.AllowedExtensions)
	v.SetDefault("documents.orphanGracePeriod", defaults.Documents.OrphanGracePeriod)
	v.SetDefault("documents.integrityInterval", defaults.Documents.IntegrityInterval)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy Policy
	if err := v.Unmarshal(&policy); err != nil {
		return nil, err
	}
	policy = normalizePolicy(policy)
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		updated = normalizePolicy(updated)
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	return h.current.Load().(Policy)
}

func (h *PolicyHolder) Billing() BillingPolicy {
	return h.Get().Billing
}

func (h *PolicyHolder) Documents() DocumentPolicy {
	return h.Get().Documents
}

func normalizePolicy(p Policy) Policy {
	exts := make([]string, 0, len(p.Documents.AllowedExtensions))
	for _, ext := range p.Documents.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	p.Documents.AllowedExtensions = exts
	return p
}

func validatePolicy(p Policy) error {
	if p.Billing.MaxConflictRetries < 1 {
		return errors.New("billing.maxConflictRetries must be at least 1")
	}
	if p.Documents.MaxUploadBytes <= 0 {
		return errors.New("documents.maxUploadBytes must be positive")
	}
	if len(p.Documents.AllowedExtensions) == 0 {
		return errors.New("documents.allowedExtensions cannot be empty")
	}
	if p.Documents.OrphanGracePeriod < 0 {
		return errors.New("documents.orphanGracePeriod cannot be negative")
	}
	return nil
}
