package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeFindUnused() string {
	return `Finds npm dependencies declared in package.json that no source file imports.

USE WHEN:
- Trimming a project's dependency list before a release
- Reviewing a pull request that removes code or features
- Auditing install size and supply-chain surface

INTERPRETING RESULTS:
- unused lists packages never referenced by an import in the scanned files
- A package used only by config files, scripts or build tooling outside the
  file pattern is reported as unused; widen "files" before removing it
- Type-only packages (@types/*) are usually devDependencies and should be
  checked with sections ["devDependencies"]
- files_failed counts files that could not be read or parsed; their imports
  are missing from the comparison, so fix them before trusting the result.
  Pass debug to see which files and why
- require() and import() calls are only counted with include_require

METRICS RETURNED:
- metadata: manifest path, file pattern, sections compared
- summary: declared, used, unused, files_scanned, files_failed, files_cached
- unused: name and manifest section of every unused dependency
- failures (debug only): path, kind (read, parse, panic) and message per failed file`
}

func describeListImports() string {
	return `Lists the external module names each source file imports.

USE WHEN:
- Explaining why a dependency is considered used
- Finding which files pull in a given package
- Checking what a file pattern actually covers

INTERPRETING RESULTS:
- Only literal module specifiers are listed; computed import paths are skipped
- Relative imports are included as written ("./util"), they never match a
  manifest entry
- Files that fail to read or parse are listed in failed, not in files

METRICS RETURNED:
- files: path and references per processed file
- references: sorted union of every module name seen
- failed: path of every file that could not be scanned, in input order
- failures (debug only): error message per failed file`
}
