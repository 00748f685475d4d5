package certificates

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/youmark/pkcs8"
	"software.sslmate.com/src/go-pkcs12"
)

const (
	privateKeyPemBlockType          = "PRIVATE KEY"
	encryptedPrivateKeyPemBlockType = "ENCRYPTED PRIVATE KEY"
	privateKeyFileExtension         = ".key"
	exportedFilePermissions         = fs.FileMode(0o600)
	exportDirectoryPermissions      = fs.FileMode(0o700)
	keyDerivationIterationCount     = 100000
	keyDerivationSaltSize           = 16
)

// ExportFormat selects the container written by ExportCertificate.
type ExportFormat string

const (
	// ExportFormatPEM writes a PEM certificate and an optional .key sidecar.
	ExportFormatPEM ExportFormat = "pem"
	// ExportFormatPFX writes a PKCS#12 archive, or the bare DER certificate when the key is excluded.
	ExportFormatPFX ExportFormat = "pfx"
)

// ErrUnknownExportFormat is returned for formats other than pem and pfx.
var ErrUnknownExportFormat = errors.New("unknown export format")

// ParseExportFormat validates a user supplied format name.
func ParseExportFormat(value string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case ExportFormatPEM, "":
		return ExportFormatPEM, nil
	case ExportFormatPFX:
		return ExportFormatPFX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownExportFormat, value)
	}
}

// ExportOptions controls ExportCertificate.
type ExportOptions struct {
	Format            ExportFormat
	IncludePrivateKey bool
	Password          string
}

// EncodeCertificatePEM returns the PEM encoding of the certificate's public part.
func EncodeCertificatePEM(certificate Certificate) ([]byte, error) {
	buffer, err := encodePEM(certificatePemBlockType, certificate.DER)
	if err != nil {
		return nil, err
	}
	defer releaseBuffer(buffer)
	return append([]byte(nil), buffer.B...), nil
}

// ParseCertificatePEM decodes the first CERTIFICATE block in content.
func ParseCertificatePEM(content []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, content = pem.Decode(content)
		if block == nil {
			return nil, errors.New("no certificate block found")
		}
		if block.Type == certificatePemBlockType {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

// KeyFilePath returns the sidecar path that holds the private key for a PEM export.
func KeyFilePath(certificatePath string) string {
	return strings.TrimSuffix(certificatePath, filepath.Ext(certificatePath)) + privateKeyFileExtension
}

// ExportCertificate writes certificate to path in the requested format.
func ExportCertificate(fileSystem FileSystem, certificate Certificate, path string, options ExportOptions) error {
	directoryErr := fileSystem.EnsureDirectory(filepath.Dir(path), exportDirectoryPermissions)
	if directoryErr != nil {
		return fmt.Errorf("ensure export directory: %w", directoryErr)
	}

	switch options.Format {
	case ExportFormatPFX:
		return exportPFX(fileSystem, certificate, path, options)
	case ExportFormatPEM, "":
		return exportPEM(fileSystem, certificate, path, options)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExportFormat, options.Format)
	}
}

func exportPEM(fileSystem FileSystem, certificate Certificate, path string, options ExportOptions) error {
	certificateBuffer, encodeErr := encodePEM(certificatePemBlockType, certificate.DER)
	if encodeErr != nil {
		return encodeErr
	}
	defer releaseBuffer(certificateBuffer)

	if writeErr := fileSystem.WriteFile(path, certificateBuffer.B, exportedFilePermissions); writeErr != nil {
		return fmt.Errorf("write certificate %s: %w", path, writeErr)
	}
	if !options.IncludePrivateKey {
		return nil
	}

	keyPath := KeyFilePath(path)
	if writeKeyErr := writePrivateKeyPEM(fileSystem, certificate.PrivateKey, keyPath, options.Password); writeKeyErr != nil {
		if removeErr := fileSystem.Remove(keyPath); removeErr != nil {
			return errors.Join(writeKeyErr, fmt.Errorf("remove private key %s: %w", keyPath, removeErr))
		}
		return writeKeyErr
	}
	return nil
}

func writePrivateKeyPEM(fileSystem FileSystem, privateKey *rsa.PrivateKey, path string, password string) error {
	if privateKey == nil {
		return errors.New("export private key: certificate has no private key")
	}

	blockType := privateKeyPemBlockType
	var keyDer []byte
	var marshalErr error
	if password == "" {
		keyDer, marshalErr = x509.MarshalPKCS8PrivateKey(privateKey)
	} else {
		blockType = encryptedPrivateKeyPemBlockType
		keyDer, marshalErr = pkcs8.MarshalPrivateKey(privateKey, []byte(password), &pkcs8.Opts{
			Cipher: pkcs8.AES256CBC,
			KDFOpts: pkcs8.PBKDF2Opts{
				SaltSize:       keyDerivationSaltSize,
				IterationCount: keyDerivationIterationCount,
				HMACHash:       crypto.SHA256,
			},
		})
	}
	if marshalErr != nil {
		return fmt.Errorf("marshal private key: %w", marshalErr)
	}
	defer Wipe(keyDer)

	keyBuffer, encodeErr := encodePEM(blockType, keyDer)
	if encodeErr != nil {
		return encodeErr
	}
	defer releaseBuffer(keyBuffer)

	if writeErr := fileSystem.WriteFile(path, keyBuffer.B, exportedFilePermissions); writeErr != nil {
		return fmt.Errorf("write private key %s: %w", path, writeErr)
	}
	return nil
}

func exportPFX(fileSystem FileSystem, certificate Certificate, path string, options ExportOptions) error {
	if !options.IncludePrivateKey {
		if writeErr := fileSystem.WriteFile(path, certificate.DER, exportedFilePermissions); writeErr != nil {
			return fmt.Errorf("write certificate %s: %w", path, writeErr)
		}
		return nil
	}

	archive, encodeErr := encodePFX(certificate, options.Password)
	if encodeErr != nil {
		return encodeErr
	}
	defer Wipe(archive)

	if writeErr := fileSystem.WriteFile(path, archive, exportedFilePermissions); writeErr != nil {
		return fmt.Errorf("write pfx %s: %w", path, writeErr)
	}
	return nil
}

func encodePFX(certificate Certificate, password string) ([]byte, error) {
	if certificate.PrivateKey == nil {
		return nil, errors.New("encode pfx: certificate has no private key")
	}
	var caCertificates []*x509.Certificate
	if certificate.Issuer != nil && certificate.Issuer.X509 != nil {
		caCertificates = append(caCertificates, certificate.Issuer.X509)
	}

	encoder := pkcs12.Modern
	if password == "" {
		encoder = pkcs12.Passwordless
	}
	archive, err := encoder.Encode(certificate.PrivateKey, certificate.X509, caCertificates, password)
	if err != nil {
		return nil, fmt.Errorf("encode pfx: %w", err)
	}
	return archive, nil
}
