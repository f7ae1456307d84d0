package orchestrator

// Tool names, as exposed by the tool adapter and reported to ToolHooks.
const (
	ToolSearchPackages       = "search_packages"
	ToolGetPackageInfo       = "get_package_info"
	ToolCheckVulnerabilities = "check_vulnerabilities"
	ToolGetDownloadStats     = "get_download_stats"
	ToolGetVersions          = "get_versions"
	ToolDetectPackageManager = "detect_package_manager"
	ToolInstallPackages      = "install_packages"
	ToolUpdatePackages       = "update_packages"
	ToolRemovePackages       = "remove_packages"
	ToolCheckOutdated        = "check_outdated"
	ToolAuditDependencies    = "audit_dependencies"
	ToolCleanCache           = "clean_cache"
)

// Tools lists every tool name.
var Tools = []string{
	ToolSearchPackages,
	ToolGetPackageInfo,
	ToolCheckVulnerabilities,
	ToolGetDownloadStats,
	ToolGetVersions,
	ToolDetectPackageManager,
	ToolInstallPackages,
	ToolUpdatePackages,
	ToolRemovePackages,
	ToolCheckOutdated,
	ToolAuditDependencies,
	ToolCleanCache,
}
