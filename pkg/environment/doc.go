// Package environment models the deployment environment (development,
// staging, production, test) and carries it through request contexts.
//
// The server resolves APP_ENV once with Parse and hands the value to every
// component that switches behaviour on it: mock versus real billing, the dev
// bearer shortcut, unverified webhook parsing and log format.
package environment
