package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.config/emsolve/emsolve.log"

	DefaultSpoolDir     = "~/.config/emsolve/spool"
	DefaultStorePath    = "~/.config/emsolve/matches.db"
	DefaultRegistryPath = "~/.config/emsolve/jobs.db"

	// Cluster defaults mirror the production submission script:
	// 2 nodes, 1 process per node, direct factorization through superlu_dist.
	DefaultClusterQueue        = "emconnectome"
	DefaultClusterNodes        = 2
	DefaultClusterPPN          = 1
	DefaultClusterWalltime     = "08:00:00"
	DefaultClusterModuleLoad   = "mpi/mvapich2-2.2-x86_64"
	DefaultClusterMPIExec      = "mpiexec"
	DefaultClusterSolverBinary = "em_dist_solve"
	DefaultClusterPollInterval = 30 // seconds

	DefaultSolverKSPType       = "preonly"
	DefaultSolverPCType        = "lu"
	DefaultSolverFactorPackage = "superlu_dist"
	DefaultSolverRTol          = 1e-9
	DefaultSolverMaxIter       = 1000
	DefaultSolverLogView       = true

	DefaultAssemblyTransform         = "affine"
	DefaultAssemblyDepth             = 2
	DefaultAssemblyWorkers           = 4
	DefaultAssemblyMinPoints         = 5
	DefaultAssemblyMaxPoints         = 500
	DefaultAssemblyMontageWeight     = 1.0
	DefaultAssemblyCrossWeight       = 1.0
	DefaultAssemblyLambda            = 1000.0
	DefaultAssemblyTranslationFactor = 1e-5
)

// setViperDefaults registers all default configuration values with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	v.SetDefault("spool.dir", DefaultSpoolDir)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("registry.path", DefaultRegistryPath)

	// Cluster defaults
	v.SetDefault("cluster.queue", DefaultClusterQueue)
	v.SetDefault("cluster.nodes", DefaultClusterNodes)
	v.SetDefault("cluster.ppn", DefaultClusterPPN)
	v.SetDefault("cluster.walltime", DefaultClusterWalltime)
	v.SetDefault("cluster.module_load", DefaultClusterModuleLoad)
	v.SetDefault("cluster.mpiexec", DefaultClusterMPIExec)
	v.SetDefault("cluster.solver_binary", DefaultClusterSolverBinary)
	v.SetDefault("cluster.poll_interval", DefaultClusterPollInterval)

	// Solver defaults
	v.SetDefault("solver.ksp_type", DefaultSolverKSPType)
	v.SetDefault("solver.pc_type", DefaultSolverPCType)
	v.SetDefault("solver.factor_package", DefaultSolverFactorPackage)
	v.SetDefault("solver.rtol", DefaultSolverRTol)
	v.SetDefault("solver.max_iter", DefaultSolverMaxIter)
	v.SetDefault("solver.log_view", DefaultSolverLogView)

	// Assembly defaults
	v.SetDefault("assembly.transform", DefaultAssemblyTransform)
	v.SetDefault("assembly.depth", DefaultAssemblyDepth)
	v.SetDefault("assembly.workers", DefaultAssemblyWorkers)
	v.SetDefault("assembly.min_points", DefaultAssemblyMinPoints)
	v.SetDefault("assembly.max_points", DefaultAssemblyMaxPoints)
	v.SetDefault("assembly.montage_weight", DefaultAssemblyMontageWeight)
	v.SetDefault("assembly.cross_weight", DefaultAssemblyCrossWeight)
	v.SetDefault("assembly.inverse_dz", false)
	v.SetDefault("assembly.lambda", DefaultAssemblyLambda)
	v.SetDefault("assembly.translation_factor", DefaultAssemblyTranslationFactor)
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Spool:    SpoolConfig{Dir: DefaultSpoolDir},
		Store:    StoreConfig{Path: DefaultStorePath},
		Registry: RegistryConfig{Path: DefaultRegistryPath},
		Cluster: ClusterConfig{
			Queue:        DefaultClusterQueue,
			Nodes:        DefaultClusterNodes,
			PPN:          DefaultClusterPPN,
			Walltime:     DefaultClusterWalltime,
			ModuleLoad:   DefaultClusterModuleLoad,
			MPIExec:      DefaultClusterMPIExec,
			SolverBinary: DefaultClusterSolverBinary,
			PollInterval: DefaultClusterPollInterval,
		},
		Solver: SolverConfig{
			KSPType:       DefaultSolverKSPType,
			PCType:        DefaultSolverPCType,
			FactorPackage: DefaultSolverFactorPackage,
			RTol:          DefaultSolverRTol,
			MaxIter:       DefaultSolverMaxIter,
			LogView:       DefaultSolverLogView,
		},
		Assembly: AssemblyConfig{
			Transform:         DefaultAssemblyTransform,
			Depth:             DefaultAssemblyDepth,
			Workers:           DefaultAssemblyWorkers,
			MinPoints:         DefaultAssemblyMinPoints,
			MaxPoints:         DefaultAssemblyMaxPoints,
			MontageWeight:     DefaultAssemblyMontageWeight,
			CrossWeight:       DefaultAssemblyCrossWeight,
			Lambda:            DefaultAssemblyLambda,
			TranslationFactor: DefaultAssemblyTranslationFactor,
		},
	}
}
