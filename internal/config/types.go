package config

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel string         `yaml:"log_level" mapstructure:"log_level"`
	LogFile  string         `yaml:"log_file" mapstructure:"log_file"`
	Spool    SpoolConfig    `yaml:"spool" mapstructure:"spool"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Cluster  ClusterConfig  `yaml:"cluster" mapstructure:"cluster"`
	Solver   SolverConfig   `yaml:"solver" mapstructure:"solver"`
	Assembly AssemblyConfig `yaml:"assembly" mapstructure:"assembly"`
}

// SpoolConfig holds settings for the on-disk spool of assembled systems
// and rendered job scripts.
type SpoolConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig holds the point-match store location.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RegistryConfig holds the submitted-job registry location.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ClusterConfig holds batch scheduler settings for distributed solves.
type ClusterConfig struct {
	Queue        string `yaml:"queue" mapstructure:"queue"`
	Nodes        int    `yaml:"nodes" mapstructure:"nodes"`
	PPN          int    `yaml:"ppn" mapstructure:"ppn"`
	Walltime     string `yaml:"walltime" mapstructure:"walltime"`
	Email        string `yaml:"email" mapstructure:"email"`
	ModuleLoad   string `yaml:"module_load" mapstructure:"module_load"`
	MPIExec      string `yaml:"mpiexec" mapstructure:"mpiexec"`
	SolverBinary string `yaml:"solver_binary" mapstructure:"solver_binary"`
	PollInterval int    `yaml:"poll_interval" mapstructure:"poll_interval"` // seconds
}

// SolverConfig holds linear solver settings.
type SolverConfig struct {
	KSPType       string  `yaml:"ksp_type" mapstructure:"ksp_type"`
	PCType        string  `yaml:"pc_type" mapstructure:"pc_type"`
	FactorPackage string  `yaml:"factor_package" mapstructure:"factor_package"`
	RTol          float64 `yaml:"rtol" mapstructure:"rtol"`
	MaxIter       int     `yaml:"max_iter" mapstructure:"max_iter"`
	LogView       bool    `yaml:"log_view" mapstructure:"log_view"`
}

// AssemblyConfig holds matrix assembly settings.
type AssemblyConfig struct {
	Transform         string    `yaml:"transform" mapstructure:"transform"`
	Depth             int       `yaml:"depth" mapstructure:"depth"`
	Workers           int       `yaml:"workers" mapstructure:"workers"`
	MinPoints         int       `yaml:"min_points" mapstructure:"min_points"`
	MaxPoints         int       `yaml:"max_points" mapstructure:"max_points"`
	MontageWeight     float64   `yaml:"montage_weight" mapstructure:"montage_weight"`
	CrossWeight       float64   `yaml:"cross_weight" mapstructure:"cross_weight"`
	InverseDZ         bool      `yaml:"inverse_dz" mapstructure:"inverse_dz"`
	DepthWeights      []float64 `yaml:"depth_weights,flow" mapstructure:"depth_weights"`
	Lambda            float64   `yaml:"lambda" mapstructure:"lambda"`
	TranslationFactor float64   `yaml:"translation_factor" mapstructure:"translation_factor"`
}
