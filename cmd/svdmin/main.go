package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/atime"
	humanize "github.com/dustin/go-humanize"
	"github.com/tdewolff/argp"

	min "github.com/svdmin/minify"
	"github.com/svdmin/minify/svd"
	"github.com/svdmin/minify/xml"
)

// Version is the current svdmin version.
var Version = "built from source"

var extMap = map[string]string{
	"svd": "text/x-svd",
	"xml": "text/xml",
}

var (
	hidden             bool
	list               bool
	m                  *min.M
	extensions         map[string]string
	recursive          bool
	quiet              bool
	verbose            int
	version            bool
	watch              bool
	svdSchema          bool
	preserve           []string
	preserveMode       bool
	preserveTimestamps bool
	mimetype           string
	configFile         string
)

// Task is a minify task.
type Task struct {
	root string
	src  string
	dst  string
}

// NewTask returns a new Task.
func NewTask(root, input, output string) (Task, error) {
	if len(output) != 0 && (output == "." || output[len(output)-1] == os.PathSeparator) {
		rel, err := filepath.Rel(root, input)
		if err != nil {
			return Task{}, err
		}
		output = filepath.Join(output, rel)
	}
	return Task{root, input, output}, nil
}

// Loggers.
var (
	Error   = log.New(io.Discard, "", 0)
	Warning = log.New(io.Discard, "", 0)
	Info    = log.New(io.Discard, "", 0)
)

func main() {
	// os.Exit doesn't execute pending defer calls, this is fixed by encapsulating run()
	os.Exit(run())
}

func run() int {
	var inputs []string
	var output string

	xmlMinifier := xml.Minifier{}
	svdMinifier := svd.Minifier{}

	f := argp.New("svdmin")
	f.AddRest(&inputs, "inputs", "Input files or directories, leave blank to use stdin")
	f.AddOpt(&output, "o", "output", nil, "Output file or directory, leave blank to use stdout")
	f.AddOpt(&mimetype, "", "type", nil, "Filetype (eg. svd or text/x-svd), optional when specifying inputs")
	f.AddOpt(&extensions, "", "ext", nil, "Filename extension mapping to filetype (eg. svd or text/x-svd)")
	f.AddOpt(&recursive, "r", "recursive", false, "Recursively minify directories")
	f.AddOpt(&hidden, "a", "all", false, "Minify all files, including hidden files and files in hidden directories")
	f.AddOpt(&list, "l", "list", false, "List all accepted filetypes")
	f.AddOpt(&quiet, "q", "quiet", false, "Quiet mode to suppress all output")
	f.AddOpt(argp.Count{I: &verbose}, "v", "verbose", nil, "Verbose mode, set twice for more verbosity")
	f.AddOpt(&watch, "w", "watch", false, "Watch files and minify upon changes")
	f.AddOpt(&preserve, "p", "preserve", []string{"mode", "timestamps"}, "Preserve options (mode, timestamps, all)")
	f.AddOpt(&configFile, "c", "config", nil, "TOML configuration file, options on the command line take precedence")
	f.AddOpt(&version, "", "version", false, "Version")

	f.AddOpt(&svdSchema, "", "svd-schema", false, "Convert SVD peripherals to JSON instead of renaming their tags")
	f.AddOpt(&xmlMinifier.Alphabet, "", "alphabet", nil, "Symbols that tags are renamed to in order of first occurrence, the default is a-z")
	f.Parse()

	if configFile != "" {
		config, err := LoadConfig(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			return 1
		}
		config.Apply(f, &output, &xmlMinifier)
	}

	if version {
		if !quiet {
			fmt.Printf("svdmin %s\n", Version)
		}
		return 0
	}

	for ext, filetype := range extensions {
		if mimetype, ok := extMap[filetype]; ok {
			filetype = mimetype
		}
		extMap[strings.TrimPrefix(ext, ".")] = filetype
	}

	if list {
		if !quiet {
			n := 0
			var keys []string
			for k := range extMap {
				keys = append(keys, k)
				if n < len(k) {
					n = len(k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Println(k + strings.Repeat(" ", n-len(k)+2) + extMap[k])
			}
		}
		return 0
	}

	if len(inputs) == 1 && inputs[0] == "-" {
		inputs = inputs[:0] // stdin
	} else if output == "-" {
		output = "" // stdout
	}
	useStdin := len(inputs) == 0

	if !quiet {
		Error = log.New(os.Stderr, "ERROR: ", 0)
		if 0 < verbose {
			Warning = log.New(os.Stderr, "WARNING: ", 0)
		}
		if 1 < verbose {
			Info = log.New(os.Stderr, "INFO: ", 0)
		}
	}

	// detect mimetype, mimetype=="" means we'll infer mimetype from file extensions
	if filetype, err := resolveFiletype(mimetype); err != nil {
		Error.Println(err)
		return 1
	} else if filetype != mimetype {
		Info.Println("filetype", mimetype, "is", filetype)
		mimetype = filetype
	}

	if (useStdin || output == "") && watch {
		Error.Println("--watch doesn't work with stdin and stdout, specify input and output")
		return 1
	} else if useStdin && recursive {
		Error.Println("--recursive doesn't work with stdin, specify input")
		return 1
	} else if output == "" && recursive {
		Error.Println("--recursive doesn't work with stdout, specify output")
		return 1
	}
	if mimetype == "" && useStdin {
		Error.Println("must specify --type for stdin")
		return 1
	}

	m = min.New()
	if svdSchema {
		m.Add("text/x-svd", &svdMinifier)
	} else {
		m.Add("text/x-svd", &xmlMinifier)
	}
	m.Add("application/x-svd+json", &svdMinifier)
	m.AddRegexp(regexp.MustCompile("[/+]xml$"), &xmlMinifier)
	for ext, filetype := range extMap {
		m.AddExt(ext, filetype)
	}

	if mimetype == "" {
		if !recursive {
			okAll := true
			for _, input := range inputs {
				if _, err := m.Mimetype(input); err != nil {
					Error.Println("cannot infer mimetype from extension in", input+":", err, ", set --type explicitly")
					okAll = false
				}
			}
			if !okAll {
				return 1
			}
		}
		Info.Println("infer mimetype from file extensions")
	} else {
		Info.Println("use mimetype", mimetype)
	}
	if f.IsSet("preserve") && (useStdin || output == "") {
		Error.Println("--preserve cannot be used together with stdin or stdout")
		return 1
	}
	for _, option := range preserve {
		switch option {
		case "all":
			preserveMode = true
			preserveTimestamps = true
		case "mode":
			preserveMode = true
		case "timestamps":
			preserveTimestamps = true
		default:
			Warning.Println("unknown preserve option", option)
		}
	}

	////////////////

	for i, input := range inputs {
		if input == "-" {
			Error.Println("cannot mix files and stdin as input")
			return 1
		}
		inputs[i] = filepath.Clean(input)
		if input[len(input)-1] == os.PathSeparator {
			inputs[i] += string(os.PathSeparator)
		}
	}

	// set output file or directory, empty means stdout
	dirDst := false
	if output != "" {
		dirDst = IsDir(output)
		if !dirDst {
			if 1 < len(inputs) {
				Error.Printf("stat %v: no such directory\n", output)
				return 1
			} else if len(inputs) == 1 {
				if info, err := os.Lstat(inputs[0]); err == nil && info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0 {
					dirDst = true
				}
			}
		}

		output = filepath.Clean(output)
		if dirDst {
			output += string(os.PathSeparator)
		}
	} else if 1 < len(inputs) {
		Error.Println("must specify an output directory for multiple input files")
		return 1
	}
	if output == "" {
		Info.Println("minify to stdout")
	} else if !dirDst {
		Info.Println("minify to output file", output)
	} else {
		Info.Println("minify to output directory", output)
	}

	var tasks []Task
	var roots []string
	if useStdin {
		Info.Println("minify from stdin")
		task, err := NewTask("", "", output)
		if err != nil {
			Error.Println(err)
			return 1
		}
		tasks = append(tasks, task)
		roots = append(roots, "")
	} else {
		var err error
		tasks, roots, err = createTasks(NewFS(), inputs, output)
		if err != nil {
			Error.Println(err)
			return 1
		}
	}

	if dirDst {
		if err := os.MkdirAll(output, 0777); err != nil {
			Error.Println(err)
			return 1
		}
	}

	////////////////

	fails := 0
	start := time.Now()
	if !watch && (len(tasks) == 1 || 0 < verbose) {
		for _, task := range tasks {
			if ok := minify(task); !ok {
				fails++
			}
		}
	} else {
		numWorkers := runtime.NumCPU()
		if 0 < verbose {
			numWorkers = 1
		} else if numWorkers < 4 {
			numWorkers = 4
		}

		chanTasks := make(chan Task, 20)
		chanFails := make(chan int, numWorkers)
		for n := 0; n < numWorkers; n++ {
			go minifyWorker(chanTasks, chanFails)
		}

		if !watch {
			for _, task := range tasks {
				chanTasks <- task
			}
		} else {
			watcher, err := NewWatcher(recursive)
			if err != nil {
				Error.Println(err)
				return 1
			}
			defer watcher.Close()
			changes := watcher.Run()

			for _, filename := range inputs {
				if err := watcher.AddPath(filename); err != nil {
					Error.Println(err)
					return 1
				}
			}

			for _, task := range tasks {
				watcher.IgnoreNext(task.dst)
				chanTasks <- task
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			for changes != nil {
				select {
				case <-c:
					watcher.Close()
				case file, ok := <-changes:
					if !ok {
						changes = nil
						break
					}
					file = filepath.Clean(file)
					if !fileMatches(file) {
						continue
					}

					// find longest common path among roots
					root := ""
					for _, path := range roots {
						pathRel, err1 := filepath.Rel(path, file)
						rootRel, err2 := filepath.Rel(root, file)
						if err2 != nil || err1 == nil && len(pathRel) < len(rootRel) {
							root = path
						}
					}

					task, err := NewTask(root, file, output)
					if err != nil {
						Error.Println(err)
						continue
					}
					watcher.IgnoreNext(task.dst) // skip change on output
					chanTasks <- task
				}
			}
		}

		close(chanTasks)
		for n := 0; n < numWorkers; n++ {
			fails += <-chanFails
		}
	}

	if !watch {
		Info.Println("finished in", time.Since(start))
	}
	if 0 < fails {
		return 1
	}
	return 0
}

func minifyWorker(chanTasks <-chan Task, chanFails chan<- int) {
	fails := 0
	for task := range chanTasks {
		if ok := minify(task); !ok {
			fails++
		}
	}
	chanFails <- fails
}

// resolveFiletype maps a filetype such as svd to its mimetype, mimetypes and the empty string are returned unchanged.
func resolveFiletype(filetype string) (string, error) {
	if filetype == "" || strings.Contains(filetype, "/") {
		return filetype, nil
	} else if mimetype, ok := extMap[filetype]; ok {
		return mimetype, nil
	}
	return "", fmt.Errorf("unknown filetype %s", filetype)
}

func isHidden(name string) bool {
	return !hidden && 1 < len(name) && name[0] == '.' && name != ".."
}

func fileMatches(filename string) bool {
	if isHidden(filepath.Base(filename)) {
		return false
	} else if mimetype != "" {
		return true
	}
	_, err := m.Mimetype(filename)
	return err == nil
}

func createTasks(fsys fs.FS, inputs []string, output string) ([]Task, []string, error) {
	tasks := []Task{}
	roots := []string{}
	for _, input := range inputs {
		root := filepath.Clean(filepath.Dir(input))
		input = filepath.Clean(input)

		info, err := fs.Stat(fsys, input)
		if err != nil {
			return nil, nil, err
		}

		if info.Mode().IsRegular() {
			task, err := NewTask(root, input, output)
			if err != nil {
				return nil, nil, err
			}
			tasks = append(tasks, task)
		} else if info.Mode().IsDir() {
			if !recursive {
				Warning.Println("--recursive not specified, omitting directory", input)
				continue
			}

			walkFn := func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				} else if path != input && isHidden(d.Name()) {
					if d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}

				if d.Type().IsRegular() && fileMatches(path) {
					task, err := NewTask(root, path, output)
					if err != nil {
						return err
					}
					tasks = append(tasks, task)
				}
				return nil
			}
			if err := fs.WalkDir(fsys, input, walkFn); err != nil {
				return nil, nil, err
			}
			roots = append(roots, root)
		} else {
			return nil, nil, fmt.Errorf("not a file or directory %s", input)
		}
	}
	return tasks, roots, nil
}

func minify(t Task) bool {
	srcName := t.src
	if srcName == "" {
		srcName = "stdin"
	}
	dstName := t.dst
	if dstName == "" {
		dstName = "stdout"
	}

	fileMimetype := mimetype
	if fileMimetype == "" {
		var err error
		if fileMimetype, err = m.Mimetype(t.src); err != nil {
			Warning.Println("cannot infer mimetype from extension in", srcName+":", err)
			return false
		}
	}

	fr, err := openInputFile(t.src)
	if err != nil {
		Error.Println(err)
		return false
	}
	b, err := io.ReadAll(fr)
	fr.Close()
	if err != nil {
		Error.Println("cannot minify "+srcName+":", err)
		return false
	}

	// the destination is only touched once the whole document minified successfully
	w := bytes.NewBuffer(make([]byte, 0, len(b)))
	startTime := time.Now()
	if err := m.Minify(fileMimetype, w, bytes.NewReader(b)); err != nil {
		Error.Println("cannot minify "+srcName+":", err)
		return false
	}
	dur := time.Since(startTime)
	rLen, wLen := len(b), w.Len()

	fw, err := openOutputFile(t.dst)
	if err != nil {
		Error.Println(err)
		return false
	}
	_, err = io.Copy(fw, w)
	if t.dst == "" {
		_, _ = fw.Write([]byte("\n"))
	} else if cerr := fw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		Error.Println(err)
		return false
	}

	if !quiet && t.dst != "" {
		speed := "Inf MB"
		if 0 < dur {
			speed = humanize.Bytes(uint64(float64(rLen) / dur.Seconds()))
		}
		ratio := 1.0
		if 0 < rLen {
			ratio = float64(wLen) / float64(rLen)
		}

		stats := fmt.Sprintf("(%9v, %6v, %6v, %5.1f%%, %6v/s)", dur, humanize.Bytes(uint64(rLen)), humanize.Bytes(uint64(wLen)), ratio*100, speed)
		if srcName != dstName {
			fmt.Println(stats, "-", srcName, "to", dstName)
		} else {
			fmt.Println(stats, "-", srcName)
		}
	}

	preserveAttributes(t.src, t.root, t.dst)
	return true
}

func preserveAttributes(src, root, dst string) {
	if src == "" || dst == "" || src == dst {
		return
	}

	// make sure we only set attributes on directories and files inside the root destination
	var err error
	src, err = filepath.Rel(root, src)
	if err != nil {
		Error.Printf("src is not part of root path: src=%s root=%s", src, root)
		return
	}

	for {
		srcInfo, err := os.Stat(filepath.Join(root, src))
		if err != nil {
			Warning.Println(err)
			return
		}

		if preserveMode {
			if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
				Warning.Println(err)
			}
		}
		if preserveTimestamps {
			if err := os.Chtimes(dst, atime.Get(srcInfo), srcInfo.ModTime()); err != nil {
				Warning.Println(err)
			}
		}

		// go up to but excluding the root path
		src = filepath.Dir(src)
		dst = filepath.Dir(dst)
		if src == "." {
			return
		}
	}
}
