// Package assets provides the pipeline steps that turn stylesheets, scripts,
// HTML and SVG icons into their distributable form.
//
// Stylesheets go through glob import expansion, Sass compilation,
// concatenation, vendor prefixing and, for production builds, media query
// grouping and minification. Scripts are concatenated and, for production
// builds, lowered to an older language level and minified. Development
// builds carry source maps from InitSourceMaps to WriteSourceMaps instead.
// Icons are stripped of presentation attributes and combined into a single
// symbol sprite.
package assets
