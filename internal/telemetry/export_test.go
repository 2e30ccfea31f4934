package telemetry

// ResolveOTLPTarget exposes the endpoint parser to the external test package.
var ResolveOTLPTarget = resolveOTLPTarget
