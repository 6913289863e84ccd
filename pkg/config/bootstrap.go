package config

// BootstrapConfig seeds the role catalog and a first admin account at startup.
// The catalog is always seeded on the memory backend, which starts empty.
type BootstrapConfig struct {
	SeedCatalog   bool   `env:"DASH_SEED_CATALOG" env-default:"false"`
	AdminEmail    string `env:"DASH_BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `env:"DASH_BOOTSTRAP_ADMIN_PASSWORD"`
	AdminName     string `env:"DASH_BOOTSTRAP_ADMIN_NAME"`
	AdminRole     string `env:"DASH_BOOTSTRAP_ADMIN_ROLE" env-default:"admin"`
}

// Catalog reports whether the default roles and permissions are ensured at startup
func (b BootstrapConfig) Catalog(persistence string) bool {
	return b.SeedCatalog || persistence == PersistenceMemory
}

// HasAdmin reports whether a bootstrap admin account is configured
func (b BootstrapConfig) HasAdmin() bool {
	return b.AdminEmail != ""
}

func (b BootstrapConfig) validate() ValidationErrors {
	if !b.HasAdmin() {
		return nil
	}
	return CollectErrors(
		RequireNonEmpty("DASH_BOOTSTRAP_ADMIN_PASSWORD", b.AdminPassword),
		RequireNonEmpty("DASH_BOOTSTRAP_ADMIN_ROLE", b.AdminRole),
	)
}
