// Package notebook discovers Jupyter notebooks and turns them into Python
// scripts and standalone HTML pages, either through jupyter-nbconvert or
// with the in-process converter. It also provides the step that publishes
// the rendered pages.
package notebook
