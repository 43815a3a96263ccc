// Command apns-send delivers one notification to one or more device tokens
// using the apns package.
//
//	apns-send [flags] <token> [<token2> ...]
//
// Configuration is resolved, highest precedence first, from explicit CLI
// flags, then APNS_* environment variables (including a ".env" file in the
// working directory, if present), then built-in defaults.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/takara-systems/apns"
	"github.com/takara-systems/apns/credentials"
	"github.com/takara-systems/apns/notification/priority"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("apns-send", pflag.ContinueOnError)
	certFile := flags.String("cert_file", "", "PEM certificate file (certificate auth)")
	keyFile := flags.String("key_file", "", "PEM private key file (certificate auth, or .p8 signing key for token auth)")
	chainFile := flags.String("chain_file", "", "optional PEM intermediate chain file")
	p12File := flags.String("p12_file", "", "PKCS#12 bundle (legacy certificate auth)")
	p12Password := flags.String("p12_password", "", "PKCS#12 bundle password")
	keyID := flags.String("key_id", "", "APNs signing key ID (token auth)")
	teamID := flags.String("team_id", "", "Apple developer team ID (token auth)")
	bundleID := flags.String("bundle_id", "", "app bundle ID / topic")
	sandbox := flags.Bool("sandbox", false, "use the development/sandbox APNs host")
	alternatePort := flags.Bool("alternate_port", false, "connect on port 2197 instead of 443")
	pushType := flags.String("push_type", "", "apns-push-type value; left empty, it is inferred from -bundle_id's suffix and the payload")
	alert := flags.String("alert", "", "alert text (ignored if -payload_file is set)")
	badge := flags.Int("badge", -1, "badge count; omitted if negative")
	sound := flags.String("sound", "", "sound file name")
	payloadFile := flags.String("payload_file", "", "JSON file containing the full payload (overrides -alert/-badge/-sound)")
	collapseID := flags.String("collapse_id", "", "apns-collapse-id value")
	priorityFlag := flags.Int("priority", 0, "apns-priority value (1, 5, or 10; 0 omits the header)")
	heartbeatPeriod := flags.Duration("heartbeat_period", 0, "send an HTTP/2 PING on this interval to keep the connection alive; 0 disables it")
	poolSize := flags.Int("connection_pool_size", 0, "open this many parallel HTTP/2 connections instead of one; 0 or 1 disables pooling")
	flags.String("log_level", "info", "zap log level: debug, info, warn, error")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	v := viper.New()
	v.SetEnvPrefix("APNS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		// An APNS_* value fills in any flag the command line left unset, so
		// the flag variables read below see the resolved configuration.
		if !f.Changed && v.IsSet(f.Name) {
			_ = f.Value.Set(v.GetString(f.Name))
		}
	})

	cfg := zap.NewDevelopmentConfig()
	if err := cfg.Level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	tokens := flags.Args()
	if len(tokens) == 0 {
		logger.Error("no device tokens given")
		return 2
	}
	if v.GetString("bundle_id") == "" {
		logger.Error("-bundle_id is required")
		return 2
	}

	creds, err := loadCredentials(*certFile, *keyFile, *chainFile, *p12File, *p12Password, *keyID, *teamID)
	if err != nil {
		logger.Error("loading credentials", zap.Error(err))
		return 1
	}

	p, err := buildPayload(*payloadFile, *alert, *badge, *sound)
	if err != nil {
		logger.Error("building payload", zap.Error(err))
		return 1
	}

	opts := []apns.Option{apns.WithLogger(logger)}
	if *sandbox {
		opts = append(opts, apns.WithSandbox())
	}
	if *alternatePort {
		opts = append(opts, apns.WithAlternatePort())
	}
	if *heartbeatPeriod > 0 {
		opts = append(opts, apns.WithHeartbeat(*heartbeatPeriod))
	}
	if *poolSize > 1 {
		opts = append(opts, apns.WithConnectionPool(*poolSize))
	}

	dispatcher, err := apns.NewDispatcher(creds, opts...)
	if err != nil {
		logger.Error("constructing dispatcher", zap.Error(err))
		return 1
	}
	defer dispatcher.Close()

	ns := make([]*apns.Notification, len(tokens))
	for i, token := range tokens {
		ns[i] = &apns.Notification{
			Topic:       *bundleID,
			DeviceToken: token,
			Type:        *pushType,
			Payload:     p,
			Priority:    priority.Priority(*priorityFlag),
			CollapseID:  *collapseID,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(ns) == 1 {
		resp, err := dispatcher.Send(ctx, ns[0])
		if err != nil {
			logger.Error("send failed", zap.String("token", ns[0].DeviceToken), zap.Error(err))
			return 1
		}
		logger.Info("sent", zap.String("token", resp.DeviceToken), zap.String("apns-id", resp.APNsID))
		return 0
	}

	verdicts, err := dispatcher.SendBatch(ctx, ns)
	if err != nil {
		logger.Error("batch send failed", zap.Error(err))
		return 1
	}
	failures := 0
	for token, v := range verdicts {
		if v.Success() {
			logger.Info("sent", zap.String("token", token), zap.String("apns-id", v.Response.APNsID))
		} else {
			failures++
			logger.Error("failed", zap.String("token", token), zap.Error(v.Err))
		}
	}
	if failures > 0 {
		return 1
	}
	return 0
}

func loadCredentials(certFile, keyFile, chainFile, p12File, p12Password, keyID, teamID string) (credentials.Credentials, error) {
	switch {
	case keyID != "" || teamID != "":
		if keyID == "" || teamID == "" || keyFile == "" {
			return nil, fmt.Errorf("token auth requires -key_file, -key_id, and -team_id")
		}
		return credentials.NewTokenCredentials(keyFile, keyID, teamID)
	case p12File != "":
		return credentials.NewCertificateCredentialsFromPKCS12(p12File, p12Password)
	case certFile != "":
		if keyFile == "" {
			return nil, fmt.Errorf("certificate auth requires -key_file")
		}
		return credentials.NewCertificateCredentials(certFile, keyFile, "", chainFile)
	default:
		return nil, fmt.Errorf("no credentials given: set -cert_file/-key_file, -p12_file, or -key_id/-team_id/-key_file")
	}
}

func buildPayload(payloadFile, alert string, badge int, sound string) (*apns.Payload, error) {
	if payloadFile != "" {
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return nil, fmt.Errorf("reading payload file: %w", err)
		}
		var p apns.Payload
		if err := json.Unmarshal(data, &p.APS); err != nil {
			return nil, fmt.Errorf("parsing payload file: %w", err)
		}
		// json.Unmarshal decodes every number into float64, but the aps
		// integer fields validate as int.
		p.APS.Badge = intify(p.APS.Badge)
		p.APS.ContentAvailable = intify(p.APS.ContentAvailable)
		p.APS.MutableContent = intify(p.APS.MutableContent)
		return &p, nil
	}

	p := &apns.Payload{}
	if alert != "" {
		p.APS.Alert = alert
	}
	if badge >= 0 {
		p.APS.Badge = badge
	}
	if sound != "" {
		p.APS.Sound = sound
	}
	return p, nil
}

// intify converts a whole-valued float64 back to int, leaving every other
// value untouched.
func intify(v any) any {
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return int(f)
	}
	return v
}
