package types

// InstanceConfig identifies the remote Repetier-Server instance. Normally
// supplied by the discovery collaborator; the config file carries it for the
// standalone binary.
type InstanceConfig struct {
	ID       string `yaml:"id"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	UseHTTPS bool   `yaml:"useHttps"`
	APIKey   string `yaml:"apiKey"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Preferences are the host-application toggles that steer the job lifecycle.
type Preferences struct {
	AutoPrint      bool `yaml:"autoPrint"`
	StoreOnSD      bool `yaml:"storeOnSd"`
	WebcamFlipY    bool `yaml:"webcamFlipY"`
	PollIntervalMs int  `yaml:"pollIntervalMs"`
}

// AppConfig is the yaml config file of the standalone integration binary.
type AppConfig struct {
	Instance    InstanceConfig `yaml:"instance"`
	Preferences Preferences    `yaml:"preferences"`
	ListenPort  int            `yaml:"listenPort"`
}

// FlagConfig holds runtime overrides from CLI flags.
type FlagConfig struct {
	Log           string
	UseConfigPath string
	UseAddress    string
	UsePort       int
	UseAPIKey     string
	UseListenPort int
}
