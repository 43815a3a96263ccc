package credentials

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

// CertificateCredentials authenticates to APNs with a mutual-TLS client
// certificate. It never sends an authorization header; the certificate
// presented during the TLS handshake is APNs' proof of identity.
type CertificateCredentials struct {
	cert tls.Certificate
}

// NewCertificateCredentials loads a PEM-encoded certificate and private key.
// If passphrase is non-empty, the key is decrypted as an encrypted PKCS#8
// key (the format `openssl pkcs8 -topk8` produces). If chainFile is
// non-empty, its certificates are appended after the leaf so the full
// chain is presented during the handshake.
func NewCertificateCredentials(certFile, keyFile, passphrase, chainFile string) (*CertificateCredentials, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("apns: reading certificate file: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("apns: reading key file: %w", err)
	}

	var cert tls.Certificate
	if passphrase == "" {
		cert, err = tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("apns: parsing certificate/key pair: %w", err)
		}
	} else {
		cert, err = x509KeyPairEncrypted(certPEM, keyPEM, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("apns: parsing encrypted key: %w", err)
		}
	}

	if chainFile != "" {
		chainPEM, err := os.ReadFile(chainFile)
		if err != nil {
			return nil, fmt.Errorf("apns: reading chain file: %w", err)
		}
		for {
			var block *pem.Block
			block, chainPEM = pem.Decode(chainPEM)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				cert.Certificate = append(cert.Certificate, block.Bytes)
			}
		}
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err == nil {
		cert.Leaf = leaf
	}

	return &CertificateCredentials{cert: cert}, nil
}

// NewCertificateCredentialsFromPKCS12 loads a legacy .p12 bundle, as some
// providers still distribute, instead of separate PEM cert/key files.
func NewCertificateCredentialsFromPKCS12(p12File, password string) (*CertificateCredentials, error) {
	cert, err := loadPKCS12(p12File, password)
	if err != nil {
		return nil, err
	}
	return &CertificateCredentials{cert: *cert}, nil
}

// x509KeyPairEncrypted builds a tls.Certificate from a PEM certificate and
// a passphrase-protected PKCS#8 private key.
func x509KeyPairEncrypted(certPEM, keyPEM []byte, passphrase []byte) (tls.Certificate, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return tls.Certificate{}, errors.New("no PEM block found in key file")
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decrypting PKCS#8 key: %w", err)
	}

	var certDER [][]byte
	rest := certPEM
	for {
		var certBlock *pem.Block
		certBlock, rest = pem.Decode(rest)
		if certBlock == nil {
			break
		}
		if certBlock.Type == "CERTIFICATE" {
			certDER = append(certDER, certBlock.Bytes)
		}
	}
	if len(certDER) == 0 {
		return tls.Certificate{}, errors.New("no certificate found in cert file")
	}

	return tls.Certificate{Certificate: certDER, PrivateKey: key}, nil
}

// TLSConfig implements Credentials.
func (c *CertificateCredentials) TLSConfig() (*tls.Config, error) {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{c.cert},
	}, nil
}

// AuthorizationHeader implements Credentials. Certificate authentication
// never sends a bearer header.
func (c *CertificateCredentials) AuthorizationHeader(topic string) (string, bool, error) {
	return "", false, nil
}

// Leaf returns the parsed leaf certificate, or nil if it could not be
// parsed at load time.
func (c *CertificateCredentials) Leaf() *x509.Certificate {
	return c.cert.Leaf
}

// Info parses Apple's push-certificate extensions out of the leaf
// certificate, describing which environment and topics it authorizes. It
// returns the zero Info if the leaf certificate could not be parsed.
func (c *CertificateCredentials) Info() Info {
	if c.cert.Leaf == nil {
		return Info{}
	}
	return Inspect(c.cert.Leaf)
}
