package credentials

import (
	"crypto/x509"
	"encoding/asn1"
)

// Apple embeds a handful of custom extensions in provider push
// certificates describing which environments and topics it authorizes.
var (
	oidTopics      = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 6}
	oidDevelopment = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 1}
	oidProduction  = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 3, 2}
)

// Info describes what a loaded certificate is authorized to do, parsed out
// of Apple's custom X.509 extensions.
type Info struct {
	CommonName  string
	Topics      []string
	Development bool
	Production  bool
}

// Supports reports whether the certificate authorizes pushing to topic. A
// certificate with no topics extension at all is a single-topic
// certificate scoped to its own bundle ID (CommonName).
func (i Info) Supports(topic string) bool {
	if len(i.Topics) == 0 {
		return topic == i.CommonName
	}
	for _, t := range i.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Inspect parses Info out of a leaf certificate. It returns a zero Info,
// not an error, if the certificate carries none of Apple's push extensions
// (e.g. a certificate obtained from a non-Apple CA for testing).
func Inspect(cert *x509.Certificate) Info {
	info := Info{CommonName: cert.Subject.CommonName}
	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(oidDevelopment):
			info.Development = true
		case ext.Id.Equal(oidProduction):
			info.Production = true
		case ext.Id.Equal(oidTopics):
			info.Topics = parseTopics(ext.Value)
		}
	}
	return info
}

// parseTopics decodes the nested SEQUENCE of (topic, service names) pairs
// Apple stores in the topics extension, keeping only the topic strings.
func parseTopics(value []byte) []string {
	var outer asn1.RawValue
	if _, err := asn1.Unmarshal(value, &outer); err != nil {
		return nil
	}
	var topics []string
	rest := outer.Bytes
	for len(rest) > 0 {
		var topic string
		var err error
		rest, err = asn1.Unmarshal(rest, &topic)
		if err != nil {
			break
		}
		topics = append(topics, topic)

		var names []string
		rest, err = asn1.Unmarshal(rest, &names)
		if err != nil {
			break
		}
	}
	return topics
}
