package sftp

// SSHAuthMethod enumerates the supported ssh authentication methods.
type SSHAuthMethod string

const (
	SSHAuthMethodPassword      SSHAuthMethod = "PASSWORD"
	SSHAuthMethodPublicKeyFile SSHAuthMethod = "PUBLIC_KEY_FILE"
)

// SSHAuth is a structure to store ssh authentication configuration.
type SSHAuth struct {
	Method        SSHAuthMethod
	Password      string
	PublicKeyFile string
}

// Config is a structure to store SFTP client configuration.
type Config struct {
	Host     string
	Port     string
	Username string
	Auth     SSHAuth
}
