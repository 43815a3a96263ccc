package credentials

import (
	"crypto/tls"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// loadPKCS12 loads a tls.Certificate for an APNs connection from a legacy
// PKCS#12 (.p12) bundle and password. Most providers now ship a PEM
// certificate and key instead (see NewCertificateCredentials), but some
// still distribute the older .p12 bundle.
func loadPKCS12(path, password string) (*tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read p12 file %q: %w", path, err)
	}

	privateKey, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode p12 file: %w", err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  privateKey,
		Leaf:        cert,
	}
	for _, caCert := range caCerts {
		tlsCert.Certificate = append(tlsCert.Certificate, caCert.Raw)
	}
	return &tlsCert, nil
}
